package vehicleimage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// RegistrationPlaceholder in a filename is replaced with the registration.
const RegistrationPlaceholder = "{reg}"

const DefaultFilename = RegistrationPlaceholder + ".png"

type SaveStatus int

const (
	Written SaveStatus = iota
	AlreadyExists
)

func (s SaveStatus) String() string {
	if s == AlreadyExists {
		return "already exists"
	}
	return "written"
}

type SaveResult struct {
	Path   string
	Status SaveStatus
}

// Store writes images into a directory without ever replacing an existing file.
type Store struct {
	Directory string
	// Filename defaults to DefaultFilename.
	Filename string
}

func NewStore(directory, filename string) Store {
	if filename == "" {
		filename = DefaultFilename
	}
	return Store{Directory: directory, Filename: filename}
}

func (s Store) Path(registration string) string {
	filename := s.Filename
	if filename == "" {
		filename = DefaultFilename
	}
	return filepath.Join(s.Directory, strings.ReplaceAll(filename, RegistrationPlaceholder, registration))
}

// Save writes data to the registration's path. An existing file is left
// untouched and reported with the AlreadyExists status instead of an error.
func (s Store) Save(registration string, data []byte) (SaveResult, error) {
	path := s.Path(registration)
	result := SaveResult{Path: path, Status: AlreadyExists}

	if _, err := os.Stat(path); err == nil {
		return result, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return SaveResult{}, err
	}

	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return SaveResult{}, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return result, nil
	}
	if err != nil {
		return SaveResult{}, err
	}

	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return SaveResult{}, err
	}

	result.Status = Written
	return result, nil
}

// Err is ErrFileAlreadyExists when nothing was written.
func (r SaveResult) Err() error {
	if r.Status == AlreadyExists {
		return ErrFileAlreadyExists
	}
	return nil
}
