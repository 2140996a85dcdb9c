package vehicleimage

import (
	"os/exec"
	"runtime"
)

// Viewer opens a saved image for the user.
type Viewer interface {
	Open(path string) error
}

// SystemViewer hands the file to the desktop's default image viewer and does
// not wait for it to exit.
type SystemViewer struct{}

func (SystemViewer) Open(path string) error {
	_, err := startDetached(viewerCommand(runtime.GOOS, path))
	return err
}

// startDetached starts cmd and reaps it in the background, the returned
// channel receives the exit error once it is done.
func startDetached(cmd *exec.Cmd) (<-chan error, error) {
	err := cmd.Start()
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	return done, nil
}

func viewerCommand(goos, path string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	}
	return exec.Command("xdg-open", path)
}
