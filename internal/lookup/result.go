package lookup

import (
	"errors"

	"carcheck/internal/vehicle"
	"carcheck/internal/vehicleimage"
)

type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeNoData means the page was fetched but carried no attributes.
	OutcomeNoData
	// OutcomePlaceholder means the image was the service's placeholder and was discarded.
	OutcomePlaceholder
	// OutcomeAlreadyExists means the image file was already there and was left alone.
	OutcomeAlreadyExists
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNoData:
		return "no-data"
	case OutcomePlaceholder:
		return "placeholder"
	case OutcomeAlreadyExists:
		return "already-exists"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

type OperationResult struct {
	Operation  Operation
	Outcome    Outcome
	Record     vehicle.Record
	Projection vehicle.Projection
	Image      vehicleimage.Asset
	// Path is the file written (or found already existing) by the operation.
	Path string
	Err  error
}

type RegistrationResult struct {
	Registration string
	Operations   []OperationResult
}

// Err joins the errors of every failed operation.
func (r RegistrationResult) Err() error {
	var errs []error
	for _, op := range r.Operations {
		if op.Err != nil {
			errs = append(errs, op.Err)
		}
	}
	return errors.Join(errs...)
}

func (r RegistrationResult) Failed() bool {
	return r.Err() != nil
}

// Record returns the first attribute record any operation produced.
func (r RegistrationResult) Record() (vehicle.Record, bool) {
	for _, op := range r.Operations {
		if op.Record != nil {
			return op.Record, true
		}
	}
	return nil, false
}

// BatchResult holds one entry per registration, in input order.
type BatchResult struct {
	Registrations []RegistrationResult
}

func (b BatchResult) Get(registration string) (RegistrationResult, bool) {
	for _, r := range b.Registrations {
		if r.Registration == registration {
			return r, true
		}
	}
	return RegistrationResult{}, false
}

func (b BatchResult) Failed() int {
	n := 0
	for _, r := range b.Registrations {
		if r.Failed() {
			n++
		}
	}
	return n
}

func (b BatchResult) OperationCount() int {
	n := 0
	for _, r := range b.Registrations {
		n += len(r.Operations)
	}
	return n
}
