package lookup

import (
	"context"

	"carcheck/internal/telemetry"
	"carcheck/internal/vehicle"
	"carcheck/internal/vehicleimage"
	"carcheck/lib/htmlutil"
	"carcheck/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	report_service_fetch      = "service.fetch"
	report_service_pairing    = "service.pairing"
	report_service_projection = "service.projection"
	report_service_image      = "service.image"
	report_service_output     = "service.output"
	report_service_failed     = "service.failed-registrations"
)

// labels closer than this to a missing label are suggested in the warning
const labelHintThreshold = 0.85

var tracer = otel.Tracer("carcheck/lookup")

// PageSource is the transport to the lookup service.
type PageSource interface {
	Origin() string
	FetchLookupPage(ctx context.Context, registration string) ([]byte, error)
	FetchImage(ctx context.Context, link string) ([]byte, error)
}

// Output presents results. Report is called once for every operation after it
// finished, whatever its outcome.
type Output interface {
	ShowRecord(registration string, record vehicle.Record)
	ShowProjection(registration string, projection vehicle.Projection)
	WriteJSON(registration string, record vehicle.Record) (path string, err error)
	Report(registration string, result OperationResult)
}

type Options struct {
	Source    PageSource
	Reference vehicleimage.Reference
	Store     vehicleimage.Store
	Viewer    vehicleimage.Viewer
	Output    Output
}

type Service struct {
	source    PageSource
	validator vehicleimage.Validator
	store     vehicleimage.Store
	viewer    vehicleimage.Viewer
	output    Output
	tel       telemetry.API
	processed metric.Int64Counter
}

func NewService(opts Options, tel telemetry.API) Service {
	tel = telemetry.NewScopedAPI("lookup", tel)

	processed, err := otel.Meter("carcheck/lookup").Int64Counter(
		"carcheck.lookup.operations",
		metric.WithDescription("operations run against registrations, by outcome"),
	)
	if err != nil {
		tel.ReportBroken("service.meter", err)
		processed = noop.Int64Counter{}
	}

	return Service{
		source:    opts.Source,
		validator: vehicleimage.NewValidator(opts.Reference, opts.Source),
		store:     opts.Store,
		viewer:    opts.Viewer,
		output:    opts.Output,
		tel:       tel,
		processed: processed,
	}
}

// Process runs every operation of req against every registration, one after the
// other. A failure only ever affects the operation it happened in.
func (s Service) Process(ctx context.Context, registrations []string, req Request) BatchResult {
	var batch BatchResult
	for _, registration := range registrations {
		batch.Registrations = append(batch.Registrations, s.processRegistration(ctx, registration, req))
	}
	s.tel.ReportCount(report_service_failed, int64(batch.Failed()))
	return batch
}

func (s Service) processRegistration(ctx context.Context, registration string, req Request) RegistrationResult {
	ctx, span := tracer.Start(ctx, "processRegistration")
	defer span.End()
	span.SetAttributes(attribute.String("registration", registration))

	result := RegistrationResult{Registration: registration}
	for _, op := range req.Operations {
		opResult := s.run(ctx, registration, op, req)
		if opResult.Err != nil {
			opResult.Outcome = OutcomeFailed
			span.RecordError(opResult.Err)
			span.SetStatus(codes.Error, "operation failed")
		}

		s.processed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op.String()),
			attribute.String("outcome", opResult.Outcome.String()),
		))
		s.output.Report(registration, opResult)
		result.Operations = append(result.Operations, opResult)
	}
	return result
}

// fetch gets a fresh page for every operation, nothing is shared between them.
func (s Service) fetch(ctx context.Context, registration string) (*goquery.Document, error) {
	markup, err := s.source.FetchLookupPage(ctx, registration)
	if err != nil {
		s.tel.ReportWarning(report_service_fetch, registration, err)
		return nil, err
	}
	return htmlutil.Parse(ctx, markup)
}

func (s Service) run(ctx context.Context, registration string, op Operation, req Request) OperationResult {
	result := OperationResult{Operation: op}

	doc, err := s.fetch(ctx, registration)
	if err != nil {
		result.Err = err
		return result
	}

	switch op {
	case OpImage, OpImageShow:
		s.runImage(ctx, registration, doc, &result)
	default:
		s.runAttributes(ctx, registration, doc, req, &result)
	}
	return result
}

func (s Service) extract(ctx context.Context, registration string, doc *goquery.Document) vehicle.Record {
	pairing := vehicle.ExtractAttributes(ctx, doc)
	if pairing.DroppedTrailingNode {
		s.tel.ReportWarning(report_service_pairing, registration, pairing.DroppedText)
	}
	return pairing.Pairs
}

func (s Service) runAttributes(ctx context.Context, registration string, doc *goquery.Document, req Request, result *OperationResult) {
	record := s.extract(ctx, registration, doc)
	result.Record = record
	if len(record) == 0 {
		result.Outcome = OutcomeNoData
		return
	}

	switch result.Operation {
	case OpShowAll:
		s.output.ShowRecord(registration, record)
	case OpShowSubset:
		projection := vehicle.ProjectFields(record, req.Fields)
		for _, missing := range projection.Missing {
			s.reportMissing(registration, missing, record)
		}
		result.Projection = projection
		s.output.ShowProjection(registration, projection)
	case OpExportJSON:
		path, err := s.output.WriteJSON(registration, record)
		if err != nil {
			s.tel.ReportBroken(report_service_output, registration, err)
			result.Err = err
			return
		}
		result.Path = path
	}
}

func (s Service) reportMissing(registration, missing string, record vehicle.Record) {
	best, score, ok := textutil.Closest(missing, record.Labels())
	if ok && score >= labelHintThreshold {
		s.tel.ReportWarning(report_service_projection, registration, missing, "closest: "+best)
		return
	}
	s.tel.ReportWarning(report_service_projection, registration, missing)
}

func (s Service) runImage(ctx context.Context, registration string, doc *goquery.Document, result *OperationResult) {
	asset, err := s.validator.Fetch(ctx, doc, s.source.Origin())
	if err != nil {
		s.tel.ReportWarning(report_service_image, registration, err)
		result.Err = err
		return
	}
	result.Image = asset

	if !asset.IsGenuine() {
		if result.Operation == OpImageShow {
			result.Err = vehicleimage.ErrNoGenuineImageFound
			return
		}
		result.Outcome = OutcomePlaceholder
		return
	}

	saved, err := s.store.Save(registration, asset.Data)
	if err != nil {
		s.tel.ReportBroken(report_service_output, registration, err)
		result.Err = err
		return
	}
	result.Path = saved.Path
	if saved.Status == vehicleimage.AlreadyExists {
		result.Outcome = OutcomeAlreadyExists
	}

	if result.Operation == OpImageShow {
		s.tel.ReportDebug(report_service_image, "opening", registration, saved.Path)
		err = s.viewer.Open(saved.Path)
		if err != nil {
			result.Err = err
		}
	}
}
