// Package vehicle turns a vehicle lookup page into an ordered attribute record
// and selects subsets of it.
package vehicle

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("carcheck/vehicle")
