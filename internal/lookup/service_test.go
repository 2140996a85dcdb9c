package lookup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carcheck/internal/telemetry"
	"carcheck/internal/vehicle"
	"carcheck/internal/vehicleimage"

	"github.com/stretchr/testify/require"
)

const testOrigin = "https://cars.test"

var errUnreachable = errors.New("connection refused")

func lookupPage(image string, rows ...[2]string) []byte {
	var b strings.Builder
	b.WriteString("<html><body>")
	if image != "" {
		fmt.Fprintf(&b, `<img class="vehicle__img" src="%s">`, image)
	}
	for _, r := range rows {
		fmt.Fprintf(&b, `<div class="vehicle__info--row"><span>%s</span><span>%s</span></div>`, r[0], r[1])
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}

type fakeSource struct {
	pages   map[string][]byte
	images  map[string][]byte
	fetches map[string]int
}

func (f *fakeSource) Origin() string {
	return testOrigin
}

func (f *fakeSource) FetchLookupPage(_ context.Context, registration string) ([]byte, error) {
	f.fetches[registration]++
	page, ok := f.pages[registration]
	if !ok {
		return nil, errUnreachable
	}
	return page, nil
}

func (f *fakeSource) FetchImage(_ context.Context, link string) ([]byte, error) {
	data, ok := f.images[strings.TrimPrefix(link, testOrigin)]
	if !ok {
		return nil, errUnreachable
	}
	return data, nil
}

type fakeOutput struct {
	dir         string
	shown       map[string]vehicle.Record
	projections map[string]vehicle.Projection
	reports     []string
}

func (f *fakeOutput) ShowRecord(registration string, record vehicle.Record) {
	f.shown[registration] = record
}

func (f *fakeOutput) ShowProjection(registration string, projection vehicle.Projection) {
	f.projections[registration] = projection
}

func (f *fakeOutput) WriteJSON(registration string, record vehicle.Record) (string, error) {
	path := filepath.Join(f.dir, registration+".json")
	out, err := record.MarshalJSON()
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, out, 0644)
}

func (f *fakeOutput) Report(registration string, result OperationResult) {
	f.reports = append(f.reports, fmt.Sprintf("%s %s %s", registration, result.Operation, result.Outcome))
}

type fakeViewer struct {
	opened []string
}

func (f *fakeViewer) Open(path string) error {
	f.opened = append(f.opened, path)
	return nil
}

type fixture struct {
	source  *fakeSource
	output  *fakeOutput
	viewer  *fakeViewer
	rec     *telemetry.Recorder
	dir     string
	service Service
}

func genuinePng(t testing.TB) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	img.Set(3, 3, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func placeholderPng(t testing.TB) []byte {
	data, err := os.ReadFile(filepath.Join("..", "vehicleimage", "res", "not_found.png"))
	require.NoError(t, err)
	return data
}

func newFixture(t testing.TB) *fixture {
	dir := t.TempDir()
	ref, err := vehicleimage.DefaultReference()
	require.NoError(t, err)

	f := &fixture{
		source: &fakeSource{
			pages: map[string][]byte{
				"AB12CDE": lookupPage("/img/AB12CDE.png",
					[2]string{"Make", "Ford"},
					[2]string{"Model", "Focus"},
					[2]string{"BHP", "150"},
				),
				"NOPIC1": lookupPage("/img/none.png",
					[2]string{"Make", "Vauxhall"},
				),
				"EMPTY1": lookupPage(""),
			},
			images: map[string][]byte{
				"/img/AB12CDE.png": genuinePng(t),
				"/img/none.png":    placeholderPng(t),
			},
			fetches: map[string]int{},
		},
		output: &fakeOutput{
			dir:         dir,
			shown:       map[string]vehicle.Record{},
			projections: map[string]vehicle.Projection{},
		},
		viewer: &fakeViewer{},
		rec:    &telemetry.Recorder{},
		dir:    dir,
	}
	f.service = NewService(Options{
		Source:    f.source,
		Reference: ref,
		Store:     vehicleimage.NewStore(dir, ""),
		Viewer:    f.viewer,
		Output:    f.output,
	}, f.rec)
	return f
}

func mustRequest(t testing.TB, ops []Operation, fields ...vehicle.Field) Request {
	req, err := NewRequest(ops, fields)
	require.NoError(t, err)
	return req
}

func TestBatchFailureIsolation(t *testing.T) {
	f := newFixture(t)
	req := mustRequest(t, []Operation{OpShowAll})

	batch := f.service.Process(context.Background(), []string{"AB12CDE", "XY99ZZZ"}, req)
	require.Len(t, batch.Registrations, 2)

	first, ok := batch.Get("AB12CDE")
	require.True(t, ok)
	require.False(t, first.Failed())
	record, ok := first.Record()
	require.True(t, ok)
	require.Len(t, record, 3)
	require.Equal(t, record, f.output.shown["AB12CDE"])

	second, ok := batch.Get("XY99ZZZ")
	require.True(t, ok)
	require.True(t, second.Failed())
	require.ErrorIs(t, second.Err(), errUnreachable)
	require.Equal(t, OutcomeFailed, second.Operations[0].Outcome)

	require.Equal(t, 1, batch.Failed())
}

func TestEveryOperationRuns(t *testing.T) {
	f := newFixture(t)
	req := mustRequest(t, []Operation{OpExportJSON, OpShowAll, OpImage}, vehicle.FieldModel)
	registrations := []string{"XY99ZZZ", "AB12CDE", "EMPTY1"}

	batch := f.service.Process(context.Background(), registrations, req)
	require.Equal(t, len(registrations)*len(req.Operations), batch.OperationCount())

	// each operation fetches its own page
	for _, r := range registrations {
		require.Equal(t, len(req.Operations), f.source.fetches[r])
	}

	ab, _ := batch.Get("AB12CDE")
	var ops []Operation
	for _, op := range ab.Operations {
		ops = append(ops, op.Operation)
	}
	require.Equal(t, []Operation{OpImage, OpShowAll, OpShowSubset, OpExportJSON}, ops)
	require.Len(t, f.output.reports, batch.OperationCount())
}

func TestEndToEndSubset(t *testing.T) {
	f := newFixture(t)
	req := mustRequest(t, nil, vehicle.FieldModel, vehicle.FieldMake)

	batch := f.service.Process(context.Background(), []string{"AB12CDE"}, req)
	result, _ := batch.Get("AB12CDE")
	require.Equal(t, vehicle.Record{
		{Label: "Model", Value: "Focus"},
		{Label: "Make", Value: "Ford"},
	}, result.Operations[0].Projection.Pairs)
	require.Equal(t, result.Operations[0].Projection, f.output.projections["AB12CDE"])
}

func TestSubsetMissingLabel(t *testing.T) {
	f := newFixture(t)
	f.source.pages["COLOR1"] = lookupPage("", [2]string{"Make", "Ford"}, [2]string{"Color", "Red"})
	req := mustRequest(t, nil, vehicle.FieldColour, vehicle.FieldMake)

	batch := f.service.Process(context.Background(), []string{"COLOR1"}, req)
	result, _ := batch.Get("COLOR1")
	require.False(t, result.Failed())
	require.Equal(t, vehicle.Record{{Label: "Make", Value: "Ford"}}, result.Operations[0].Projection.Pairs)
	require.Equal(t, []string{"Colour"}, result.Operations[0].Projection.Missing)

	warnings := f.rec.Find("warning", report_service_projection)
	require.Len(t, warnings, 1)
	require.Equal(t, []any{"COLOR1", "Colour", "closest: Color"}, warnings[0].Params)
}

func TestNoData(t *testing.T) {
	f := newFixture(t)
	req := mustRequest(t, []Operation{OpShowAll, OpExportJSON})

	batch := f.service.Process(context.Background(), []string{"EMPTY1"}, req)
	result, _ := batch.Get("EMPTY1")
	require.False(t, result.Failed())
	for _, op := range result.Operations {
		require.Equal(t, OutcomeNoData, op.Outcome)
	}
	_, shown := f.output.shown["EMPTY1"]
	require.False(t, shown)
	_, err := os.Stat(filepath.Join(f.dir, "EMPTY1.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestExportJSON(t *testing.T) {
	f := newFixture(t)
	req := mustRequest(t, []Operation{OpExportJSON})

	batch := f.service.Process(context.Background(), []string{"AB12CDE"}, req)
	result, _ := batch.Get("AB12CDE")
	require.Equal(t, filepath.Join(f.dir, "AB12CDE.json"), result.Operations[0].Path)

	written, err := os.ReadFile(result.Operations[0].Path)
	require.NoError(t, err)
	require.Equal(t, `{"Make":"Ford","Model":"Focus","BHP":"150"}`, string(written))
}

func TestPairingAnomalyIsReported(t *testing.T) {
	f := newFixture(t)
	f.source.pages["ODD1"] = []byte(`<div class="vehicle__info--row"><span>Make</span><span>Ford</span><span>Year</span></div>`)
	req := mustRequest(t, []Operation{OpShowAll})

	batch := f.service.Process(context.Background(), []string{"ODD1"}, req)
	result, _ := batch.Get("ODD1")
	record, _ := result.Record()
	require.Equal(t, vehicle.Record{{Label: "Make", Value: "Ford"}}, record)

	warnings := f.rec.Find("warning", report_service_pairing)
	require.Len(t, warnings, 1)
	require.Equal(t, []any{"ODD1", "Year"}, warnings[0].Params)
}

func TestFetchImage(t *testing.T) {
	f := newFixture(t)
	req := mustRequest(t, []Operation{OpImage})

	batch := f.service.Process(context.Background(), []string{"AB12CDE", "NOPIC1", "EMPTY1"}, req)

	genuine, _ := batch.Get("AB12CDE")
	require.Equal(t, OutcomeOK, genuine.Operations[0].Outcome)
	require.Equal(t, filepath.Join(f.dir, "AB12CDE.png"), genuine.Operations[0].Path)
	require.FileExists(t, genuine.Operations[0].Path)

	placeholder, _ := batch.Get("NOPIC1")
	require.False(t, placeholder.Failed())
	require.Equal(t, OutcomePlaceholder, placeholder.Operations[0].Outcome)
	require.NoFileExists(t, filepath.Join(f.dir, "NOPIC1.png"))

	missing, _ := batch.Get("EMPTY1")
	require.ErrorIs(t, missing.Err(), vehicleimage.ErrMissingImageElement)

	require.Empty(t, f.viewer.opened)
}

func TestShowImage(t *testing.T) {
	f := newFixture(t)
	req := mustRequest(t, []Operation{OpImage, OpImageShow})
	require.Equal(t, []Operation{OpImageShow}, req.Operations)

	batch := f.service.Process(context.Background(), []string{"NOPIC1", "AB12CDE"}, req)

	placeholder, _ := batch.Get("NOPIC1")
	require.ErrorIs(t, placeholder.Err(), vehicleimage.ErrNoGenuineImageFound)

	genuine, _ := batch.Get("AB12CDE")
	require.False(t, genuine.Failed())
	require.Equal(t, []string{filepath.Join(f.dir, "AB12CDE.png")}, f.viewer.opened)
}

func TestImageNotOverwritten(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "AB12CDE.png")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0644))

	req := mustRequest(t, []Operation{OpImageShow})
	batch := f.service.Process(context.Background(), []string{"AB12CDE"}, req)

	result, _ := batch.Get("AB12CDE")
	require.False(t, result.Failed())
	require.Equal(t, OutcomeAlreadyExists, result.Operations[0].Outcome)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "previous", string(contents))
	require.Equal(t, []string{path}, f.viewer.opened)
}

func TestNewRequest(t *testing.T) {
	_, err := NewRequest(nil, nil)
	require.ErrorIs(t, err, ErrNoOperation)

	_, err = NewRequest([]Operation{OpShowSubset}, nil)
	require.Error(t, err)

	req, err := NewRequest([]Operation{OpExportJSON, OpShowAll, OpShowAll}, nil)
	require.NoError(t, err)
	require.Equal(t, []Operation{OpShowAll, OpExportJSON}, req.Operations)
	require.True(t, req.Has(OpShowAll))
	require.False(t, req.Has(OpImage))
}

func TestParseRegistrations(t *testing.T) {
	table := []struct {
		input    string
		expected []string
	}{
		{input: "AB12CDE", expected: []string{"AB12CDE"}},
		{input: "AB12CDE,xy99zzz", expected: []string{"AB12CDE", "xy99zzz"}},
		{input: " AB12CDE , ,XY99ZZZ,", expected: []string{"AB12CDE", "XY99ZZZ"}},
		{input: "", expected: nil},
	}

	for _, row := range table {
		require.Equal(t, row.expected, ParseRegistrations(row.input))
	}
}
