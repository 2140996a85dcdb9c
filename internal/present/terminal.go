package present

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"carcheck/internal/lookup"
	"carcheck/internal/scrapers/carcheck"
	"carcheck/internal/vehicle"
	"carcheck/internal/vehicleimage"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type TerminalOptions struct {
	// Destination is where JSON exports are written.
	Destination string
	Color       bool
	Verbose     bool
}

// Terminal prints results for a person at a terminal.
type Terminal struct {
	out  io.Writer
	opts TerminalOptions
}

func NewTerminal(out io.Writer, opts TerminalOptions) *Terminal {
	return &Terminal{out: out, opts: opts}
}

func (t *Terminal) println(style Style, format string, args ...any) {
	fmt.Fprintln(t.out, Format(style, fmt.Sprintf(format, args...), t.opts.Color))
}

func (t *Terminal) newTable(registration string) table.Writer {
	tw := table.NewWriter()
	style := table.StyleRounded
	if t.opts.Color {
		style.Color.Header = text.Colors{text.FgHiCyan}
		style.Color.Row = text.Colors{text.FgWhite}
		style.Color.RowAlternate = text.Colors{text.FgWhite}
	}
	tw.SetStyle(style)
	tw.SetOutputMirror(t.out)
	tw.SetTitle(registration)
	tw.AppendHeader(table.Row{"Attribute", "Value"})
	return tw
}

func (t *Terminal) renderRecord(registration string, record vehicle.Record) {
	tw := t.newTable(registration)
	for _, a := range record {
		tw.AppendRow(table.Row{a.Label, a.Value})
	}
	tw.Render()
}

func (t *Terminal) ShowRecord(registration string, record vehicle.Record) {
	t.renderRecord(registration, record)
}

func (t *Terminal) ShowProjection(registration string, projection vehicle.Projection) {
	if len(projection.Pairs) == 0 {
		t.println(StyleWarning, "None of the requested attributes (%s) were found for %s.",
			strings.Join(projection.Missing, ", "), registration)
		return
	}
	t.renderRecord(registration, projection.Pairs)
}

func (t *Terminal) WriteJSON(registration string, record vehicle.Record) (string, error) {
	return ExportJSON(t.opts.Destination, registration, record)
}

// Report prints one line per operation outcome. Every kind of outcome has its
// own wording so that a missing vehicle, an unreachable service and a missing
// photo can't be confused.
func (t *Terminal) Report(registration string, result lookup.OperationResult) {
	switch result.Outcome {
	case lookup.OutcomeNoData:
		t.println(StyleWarning, "No vehicle data found for %s.", registration)
	case lookup.OutcomePlaceholder:
		t.println(StyleWarning, "Found vehicle data for %s but no genuine image.", registration)
	case lookup.OutcomeAlreadyExists:
		t.println(StyleWarning, "Image for %s already exists, left untouched - %s", registration, result.Path)
		if result.Operation == lookup.OpImageShow && t.opts.Verbose {
			t.println(StyleStatus, "Opened %s.", result.Path)
		}
	case lookup.OutcomeFailed:
		t.println(StyleFailure, "%s", FailureMessage(registration, result.Err))
	case lookup.OutcomeOK:
		t.reportOK(registration, result)
	}
}

func (t *Terminal) reportOK(registration string, result lookup.OperationResult) {
	switch result.Operation {
	case lookup.OpImage:
		t.println(StyleSuccess, "Image for %s saved as %s", registration, result.Path)
	case lookup.OpImageShow:
		t.println(StyleSuccess, "Image for %s saved as %s and opened.", registration, result.Path)
	case lookup.OpExportJSON:
		t.println(StyleSuccess, "Data for %s saved as %s", registration, result.Path)
	default:
		if t.opts.Verbose {
			t.println(StyleStatus, "%s: %s done.", registration, result.Operation)
		}
	}
}

// FailureMessage explains a failed operation in terms of what went wrong for
// the user.
func FailureMessage(registration string, err error) string {
	var decodeErr *vehicleimage.ImageDecodeError
	switch {
	case carcheck.IsFetchError(err):
		return fmt.Sprintf("Could not reach the vehicle lookup service for %s: %v", registration, err)
	case errors.Is(err, vehicleimage.ErrNoGenuineImageFound):
		return fmt.Sprintf("Found vehicle data for %s but no genuine image to open.", registration)
	case errors.Is(err, vehicleimage.ErrMissingImageElement):
		return fmt.Sprintf("The lookup page for %s has no vehicle image.", registration)
	case errors.As(err, &decodeErr):
		return fmt.Sprintf("The %s image for %s could not be decoded: %v", decodeErr.Source, registration, decodeErr.Err)
	case errors.Is(err, vehicleimage.ErrFileAlreadyExists):
		return fmt.Sprintf("A file for %s already exists.", registration)
	}
	return fmt.Sprintf("%s: %v", registration, err)
}
