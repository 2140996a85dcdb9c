package present

import (
	"encoding/json"
	"os"
	"path/filepath"

	"carcheck/internal/vehicle"
)

// ExportJSON writes the record as <dir>/<registration>.json, replacing any
// earlier export.
func ExportJSON(dir, registration string, record vehicle.Record) (string, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, registration+".json")

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return "", err
	}
	return path, f.Close()
}
