package commands

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"carcheck/internal/vehicle"
)

// fieldOrder collects requested fields in the order pflag parses them, a
// repeated field keeps its first position.
type fieldOrder struct {
	fields []vehicle.Field
}

func (o *fieldOrder) add(field vehicle.Field) {
	if !slices.Contains(o.fields, field) {
		o.fields = append(o.fields, field)
	}
}

func (o *fieldOrder) remove(field vehicle.Field) {
	o.fields = slices.DeleteFunc(o.fields, func(f vehicle.Field) bool {
		return f == field
	})
}

// fieldFlag is a boolean flag like --model that records its field when set.
type fieldFlag struct {
	field vehicle.Field
	order *fieldOrder
	value bool
}

func (f *fieldFlag) Set(s string) error {
	value, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	f.value = value
	if value {
		f.order.add(f.field)
	} else {
		f.order.remove(f.field)
	}
	return nil
}

func (f *fieldFlag) String() string {
	return strconv.FormatBool(f.value)
}

func (f *fieldFlag) Type() string {
	return "bool"
}

func (f *fieldFlag) IsBoolFlag() bool {
	return true
}

// fieldsFlag is --fields, every occurrence appends its comma separated entries
// at the point it was given.
type fieldsFlag struct {
	order  *fieldOrder
	values []string
}

func (f *fieldsFlag) Set(s string) error {
	for _, name := range strings.Split(s, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		field, err := vehicle.ParseField(name)
		if err != nil {
			return err
		}
		f.values = append(f.values, string(field))
		f.order.add(field)
	}
	return nil
}

func (f *fieldsFlag) String() string {
	return fmt.Sprintf("[%s]", strings.Join(f.values, ","))
}

func (f *fieldsFlag) Type() string {
	return "strings"
}
