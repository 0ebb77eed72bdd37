package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/noah-isme/gema-tasks-api"

// Tracer returns the tracer used for spans under the named component.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentationName + "/" + component)
}
