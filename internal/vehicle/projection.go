package vehicle

import (
	"fmt"
	"strings"

	"carcheck/lib/textutil"
)

// Field is one of the attribute labels that can be requested on their own.
type Field string

const (
	FieldMake       Field = "Make"
	FieldModel      Field = "Model"
	FieldBody       Field = "Body"
	FieldColour     Field = "Colour"
	FieldBHP        Field = "BHP"
	FieldEngineSize Field = "Engine Size"
	FieldYear       Field = "Year"
)

// Fields is the fixed vocabulary in its canonical order.
var Fields = []Field{
	FieldMake,
	FieldModel,
	FieldBody,
	FieldColour,
	FieldBHP,
	FieldEngineSize,
	FieldYear,
}

// FlagName is the command line spelling of a field, ex. "engine-size".
func (f Field) FlagName() string {
	return strings.ReplaceAll(strings.ToLower(string(f)), " ", "-")
}

// ParseField accepts the label or the flag spelling, ignoring case and separators.
func ParseField(name string) (Field, error) {
	normalized := textutil.Normalize(name)
	for _, f := range Fields {
		if normalized == textutil.Normalize(string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown attribute %q", name)
}

// Projection is the requested subset of a record, in request order. Missing
// lists requested labels that the record did not have.
type Projection struct {
	Pairs   Record
	Missing []string
}

// Project looks up every requested label (first exact match) and appends it in
// the order requested. Labels with no match are left out of Pairs.
func Project(record Record, requested []string) Projection {
	out := Projection{Pairs: Record{}}
	for _, label := range requested {
		value, ok := record.Get(label)
		if !ok {
			out.Missing = append(out.Missing, label)
			continue
		}
		out.Pairs = append(out.Pairs, Attribute{Label: label, Value: value})
	}
	return out
}

// ProjectFields is Project over vocabulary fields.
func ProjectFields(record Record, fields []Field) Projection {
	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = string(f)
	}
	return Project(record, labels)
}
