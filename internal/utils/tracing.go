package utils

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for all spans
const TracerName = "github.com/amaumene/nightwatch"

// NewTracerProvider builds the process tracer provider and installs it as the
// global one. When disabled the global no-op provider is returned. Span ids
// are attached to log lines; no exporter is configured.
func NewTracerProvider(enabled bool, ratio float64) (trace.TracerProvider, func(context.Context) error) {
	if !enabled {
		return otel.GetTracerProvider(), func(context.Context) error { return nil }
	}
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "nightwatch"),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown
}

// TraceID returns the hex trace id of the span in ctx, or "" when not sampled
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
