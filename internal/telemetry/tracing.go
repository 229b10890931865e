package telemetry

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "codeviz"

// Tracer returns the codeviz tracer from the global provider. Without
// SetupTracing it is a no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// NewRunID returns a fresh identifier for one index or ingest session.
func NewRunID() string {
	return uuid.NewString()
}

// StartSpan starts a span tagged with the run ID.
func StartSpan(ctx context.Context, name, runID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("codeviz.run_id", runID))
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// SetupTracing installs a global tracer provider that writes finished
// spans to w as JSON. The returned function flushes and uninstalls it.
func SetupTracing(w io.Writer) (shutdown func(context.Context) error, err error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdout exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	return func(ctx context.Context) error {
		defer otel.SetTracerProvider(prev)
		return tp.Shutdown(ctx)
	}, nil
}
