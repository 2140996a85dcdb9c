package commands

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carcheck/internal/lookup"
	"carcheck/internal/telemetry"
	"carcheck/internal/vehicle"
	"carcheck/internal/vehicleimage"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func parseFlags(t testing.TB, args ...string) (lookup.Request, error) {
	cmd, f := newRootCmd()
	require.NoError(t, cmd.ParseFlags(args))
	return buildRequest(f)
}

func TestRequestedFieldOrder(t *testing.T) {
	table := []struct {
		args     []string
		expected []vehicle.Field
	}{
		{
			args:     []string{"--model", "--make"},
			expected: []vehicle.Field{vehicle.FieldModel, vehicle.FieldMake},
		},
		{
			args:     []string{"-m", "--model"},
			expected: []vehicle.Field{vehicle.FieldMake, vehicle.FieldModel},
		},
		{
			args:     []string{"--year", "-f", "engine-size,Colour", "--bhp"},
			expected: []vehicle.Field{vehicle.FieldYear, vehicle.FieldEngineSize, vehicle.FieldColour, vehicle.FieldBHP},
		},
		{
			args:     []string{"--fields", "make,model", "--make"},
			expected: []vehicle.Field{vehicle.FieldMake, vehicle.FieldModel},
		},
		{
			args:     []string{"--fields", "make", "--model", "--fields", "year"},
			expected: []vehicle.Field{vehicle.FieldMake, vehicle.FieldModel, vehicle.FieldYear},
		},
		{
			args:     []string{"--colour", "--bhp", "--colour=false"},
			expected: []vehicle.Field{vehicle.FieldBHP},
		},
	}

	for _, row := range table {
		req, err := parseFlags(t, row.args...)
		require.NoError(t, err, row.args)
		if diff := cmp.Diff(row.expected, req.Fields); diff != "" {
			t.Errorf("%v: field order (-want +got):\n%s", row.args, diff)
		}
		require.Equal(t, []lookup.Operation{lookup.OpShowSubset}, req.Operations)
	}
}

func TestBuildRequest(t *testing.T) {
	req, err := parseFlags(t, "-j", "--image", "-a", "--image-show")
	require.NoError(t, err)
	require.Equal(t, []lookup.Operation{lookup.OpImageShow, lookup.OpShowAll, lookup.OpExportJSON}, req.Operations)

	_, err = parseFlags(t, "--verbose")
	require.ErrorIs(t, err, lookup.ErrNoOperation)

	cmd, _ := newRootCmd()
	require.ErrorContains(t, cmd.ParseFlags([]string{"--fields", "wheels"}), "wheels")
}

func TestNoOperationFails(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"AB12CDE"})

	err := cmd.Execute()
	require.ErrorIs(t, err, lookup.ErrNoOperation)
	require.Contains(t, out.String(), "Usage:")
}

func TestCheckImageFilename(t *testing.T) {
	fetchImage := lookup.Request{Operations: []lookup.Operation{lookup.OpImage}}
	showAll := lookup.Request{Operations: []lookup.Operation{lookup.OpShowAll}}

	batch := []string{"AB12CDE", "XY99ZZZ"}
	require.NoError(t, checkImageFilename("", batch, fetchImage))
	require.NoError(t, checkImageFilename("car.png", []string{"AB12CDE"}, fetchImage))
	require.NoError(t, checkImageFilename("car-{reg}.png", batch, fetchImage))
	require.NoError(t, checkImageFilename("car.png", batch, showAll))
	require.Error(t, checkImageFilename("car.png", batch, fetchImage))
}

func TestResolveConfig(t *testing.T) {
	noEnv := func(string) (string, bool) { return "", false }
	t.Chdir(t.TempDir())

	cfg, err := resolveConfig("", noEnv, Config{})
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "carcheck.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		destination: "from-file",
		http_proxy: "http://file:3128",
		https_proxy: "http://file:3129",
		timeout: "10s",
	}`), 0644))

	env := map[string]string{
		envDestination: "from-env",
		envHttpProxy:   "http://env:3128",
	}
	lookupEnv := func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}

	cfg, err = resolveConfig(path, lookupEnv, Config{HttpProxy: "http://flag:3128"})
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Destination)
	require.Equal(t, "http://flag:3128", cfg.HttpProxy)
	require.Equal(t, "http://file:3129", cfg.HttpsProxy)

	timeout, err := cfg.ParseTimeout()
	require.NoError(t, err)
	require.Equal(t, "10s", timeout.String())

	_, err = resolveConfig(filepath.Join(t.TempDir(), "missing.json5"), noEnv, Config{})
	require.Error(t, err)

	_, err = Config{Timeout: "soon"}.ParseTimeout()
	require.Error(t, err)
}

const lookupPage = `<html><body>
<img class="vehicle__img" src="/images/%s.png">
<div class="vehicle__info--row"><span>Make</span><span>Ford</span></div>
<div class="vehicle__info--row"><span>Model</span><span>Focus</span></div>
<div class="vehicle__info--row"><span>BHP</span><span>150</span></div>
</body></html>`

func newLookupServer(t testing.TB) *httptest.Server {
	var carPng bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Set(3, 3, color.RGBA{R: 255, A: 255})
	require.NoError(t, png.Encode(&carPng, img))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /product-selection", func(w http.ResponseWriter, r *http.Request) {
		reg := r.FormValue("vrm")
		if reg == "XY99ZZZ" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(strings.ReplaceAll(lookupPage, "%s", reg)))
	})
	mux.HandleFunc("GET /images/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(carPng.Bytes())
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLookupBatch(t *testing.T) {
	srv := newLookupServer(t)
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(envDestination, "")
	t.Setenv(envHttpProxy, "")
	t.Setenv(envHttpsProxy, "")

	config := filepath.Join(dir, "test.json5")
	require.NoError(t, os.WriteFile(config, []byte(`{base_url: "`+srv.URL+`"}`), 0644))

	cmd := NewRootCmd()
	var out, log bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&log)
	cmd.SetArgs([]string{
		"AB12CDE,XY99ZZZ",
		"--config", config,
		"--model", "--make",
		"--json",
		"--image",
		"-d", filepath.Join(dir, "output"),
	})

	require.NoError(t, cmd.Execute())

	printed := out.String()
	require.Less(t, strings.Index(printed, "Focus"), strings.Index(printed, "Ford"))
	require.NotContains(t, printed, "BHP")
	require.Contains(t, printed, "Could not reach the vehicle lookup service for XY99ZZZ")
	require.Contains(t, log.String(), "placeholder_path is not configured")

	exported, err := os.ReadFile(filepath.Join(dir, "output", "AB12CDE.json"))
	require.NoError(t, err)
	require.Equal(t, "{\"Make\":\"Ford\",\"Model\":\"Focus\",\"BHP\":\"150\"}\n", string(exported))

	_, err = os.Stat(filepath.Join(dir, "output", "AB12CDE.png"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "output", "XY99ZZZ.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadReferenceWarnsWithoutPath(t *testing.T) {
	rec := &telemetry.Recorder{}
	_, err := loadReference("", rec)
	require.NoError(t, err)
	require.Len(t, rec.Find("warning", report_run_placeholder), 1)

	var placeholder bytes.Buffer
	require.NoError(t, png.Encode(&placeholder, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	path := filepath.Join(t.TempDir(), "not_found.png")
	require.NoError(t, os.WriteFile(path, placeholder.Bytes(), 0644))

	rec = &telemetry.Recorder{}
	ref, err := loadReference(path, rec)
	require.NoError(t, err)
	require.Empty(t, rec.Reports)

	classification, err := ref.Classify(placeholder.Bytes())
	require.NoError(t, err)
	require.Equal(t, vehicleimage.Placeholder, classification)
}
