package lookup

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"carcheck/internal/vehicle"
)

type Operation int

// Operations run in this order for every registration.
const (
	OpImage Operation = iota
	OpImageShow
	OpShowAll
	OpShowSubset
	OpExportJSON
)

func (o Operation) String() string {
	switch o {
	case OpImage:
		return "fetch-image"
	case OpImageShow:
		return "show-image"
	case OpShowAll:
		return "show-all"
	case OpShowSubset:
		return "show-subset"
	case OpExportJSON:
		return "export-json"
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

var ErrNoOperation = errors.New("no operation selected")

// Request is the set of operations to run against every registration of a batch.
type Request struct {
	Operations []Operation
	// Fields is the ordered subset for OpShowSubset.
	Fields []vehicle.Field
}

// NewRequest normalizes the selected operations: duplicates collapse, showing
// the image supersedes only fetching it, and selecting fields implies
// OpShowSubset.
func NewRequest(ops []Operation, fields []vehicle.Field) (Request, error) {
	set := map[Operation]bool{}
	for _, op := range ops {
		set[op] = true
	}
	if len(fields) > 0 {
		set[OpShowSubset] = true
	}
	if set[OpShowSubset] && len(fields) == 0 {
		return Request{}, fmt.Errorf("%s requires at least one attribute", OpShowSubset)
	}
	if set[OpImageShow] {
		delete(set, OpImage)
	}
	if len(set) == 0 {
		return Request{}, ErrNoOperation
	}

	req := Request{Fields: slices.Clone(fields)}
	for op := range set {
		req.Operations = append(req.Operations, op)
	}
	slices.Sort(req.Operations)
	return req, nil
}

func (r Request) Has(op Operation) bool {
	return slices.Contains(r.Operations, op)
}

// ParseRegistrations splits a comma separated list, case is preserved and
// nothing is validated.
func ParseRegistrations(arg string) []string {
	var out []string
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
