package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"carcheck/internal/lookup"
	"carcheck/internal/present"
	"carcheck/internal/scrapers/carcheck"
	"carcheck/internal/telemetry"
	"carcheck/internal/vehicleimage"
	"carcheck/lib/restyutil"

	"github.com/mattn/go-isatty"
)

const (
	report_run_batch       = "run.batch"
	report_run_placeholder = "run.placeholder"
	report_run_telemetry   = "run.telemetry"
)

type runOptions struct {
	Registrations []string
	Request       lookup.Request
	Config        Config
	Verbose       bool
	Out           io.Writer
	Log           io.Writer
	// Viewer opens shown images, nil means the system viewer.
	Viewer vehicleimage.Viewer
}

func colorEnabled(out io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

// loadReference reads the placeholder image from path. The bundled image is
// not the site's own placeholder, so real placeholders only classify as such
// once placeholder_path points at a copy of it.
func loadReference(path string, tel telemetry.API) (vehicleimage.Reference, error) {
	if path == "" {
		tel.ReportWarning(
			report_run_placeholder,
			"placeholder_path is not configured, placeholder images will be saved as genuine",
		)
		return vehicleimage.DefaultReference()
	}
	return vehicleimage.LoadReferenceFile(path)
}

// run validates the configuration and processes the whole batch. Failures of
// individual registrations are reported but never make run return an error.
func run(ctx context.Context, opts runOptions) error {
	logger := telemetry.NewConsoleLogger(opts.Log, opts.Verbose)
	slog.SetDefault(logger)
	tel := telemetry.NewSlogAPI(logger)

	cfg := opts.Config
	err := checkImageFilename(cfg.ImageFilename, opts.Registrations, opts.Request)
	if err != nil {
		return err
	}
	timeout, err := cfg.ParseTimeout()
	if err != nil {
		return err
	}
	var reference vehicleimage.Reference
	if opts.Request.Has(lookup.OpImage) || opts.Request.Has(lookup.OpImageShow) {
		reference, err = loadReference(cfg.PlaceholderPath, tel)
		if err != nil {
			return err
		}
	}

	var dump restyutil.InstrumentOutput
	if cfg.DumpHttp != "" {
		dump, err = restyutil.NewFilesystemOutput(cfg.DumpHttp)
		if err != nil {
			return err
		}
	}

	client, err := carcheck.NewClient(carcheck.Options{
		BaseUrl:    cfg.BaseUrl,
		HttpProxy:  cfg.HttpProxy,
		HttpsProxy: cfg.HttpsProxy,
		Timeout:    timeout,
		Output:     dump,
	}, tel)
	if err != nil {
		return err
	}

	otelProviders, err := telemetry.Setup(ctx, "carcheck", cfg.Telemetry)
	if err != nil {
		// tracing is optional, the lookup works without it
		tel.ReportBroken(report_run_telemetry, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otelProviders.Shutdown(shutdownCtx)
		if err != nil {
			tel.ReportBroken(report_run_telemetry, err)
		}
	}()

	viewer := opts.Viewer
	if viewer == nil {
		viewer = vehicleimage.SystemViewer{}
	}

	service := lookup.NewService(lookup.Options{
		Source:    client,
		Reference: reference,
		Store:     vehicleimage.NewStore(cfg.Destination, cfg.ImageFilename),
		Viewer:    viewer,
		Output: present.NewTerminal(opts.Out, present.TerminalOptions{
			Destination: cfg.Destination,
			Color:       colorEnabled(opts.Out),
			Verbose:     opts.Verbose,
		}),
	}, tel)

	batch := service.Process(ctx, opts.Registrations, opts.Request)
	tel.ReportDebug("batch finished", len(batch.Registrations), batch.OperationCount())
	if batch.Failed() > 0 {
		tel.ReportWarning(report_run_batch, fmt.Sprintf("%d of %d registrations had failures", batch.Failed(), len(batch.Registrations)))
	}
	return nil
}
