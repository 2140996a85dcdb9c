package commands

import (
	"fmt"
	"strings"

	"carcheck/internal/lookup"
	"carcheck/internal/vehicleimage"
)

func buildRequest(f *rootFlags) (lookup.Request, error) {
	var ops []lookup.Operation
	if f.image {
		ops = append(ops, lookup.OpImage)
	}
	if f.imageShow {
		ops = append(ops, lookup.OpImageShow)
	}
	if f.all {
		ops = append(ops, lookup.OpShowAll)
	}
	if f.json {
		ops = append(ops, lookup.OpExportJSON)
	}
	return lookup.NewRequest(ops, f.fields.fields)
}

// checkImageFilename rejects a fixed image filename for a batch, every
// registration would otherwise write to the same file.
func checkImageFilename(filename string, registrations []string, req lookup.Request) error {
	if filename == "" || len(registrations) < 2 {
		return nil
	}
	if !req.Has(lookup.OpImage) && !req.Has(lookup.OpImageShow) {
		return nil
	}
	if strings.Contains(filename, vehicleimage.RegistrationPlaceholder) {
		return nil
	}
	return fmt.Errorf(
		"image filename %q must contain %s when looking up more than one registration",
		filename, vehicleimage.RegistrationPlaceholder,
	)
}
