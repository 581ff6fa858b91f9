package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// SpanRecorder captures ended spans in memory for tests.
type SpanRecorder struct {
	*tracetest.SpanRecorder
	provider *trace.TracerProvider
}

// InstallSpanRecorder installs an in-memory tracer provider as the global
// provider. Code under test must resolve its tracer per call.
func InstallSpanRecorder(tb testing.TB) *SpanRecorder {
	tb.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(rec))

	otel.SetTracerProvider(tp)
	tb.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return &SpanRecorder{SpanRecorder: rec, provider: tp}
}

// Names returns the names of all ended spans in end order.
func (r *SpanRecorder) Names() []string {
	spans := r.Ended()
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	return names
}

// Span returns the first ended span with the given name, or nil.
func (r *SpanRecorder) Span(name string) trace.ReadOnlySpan {
	for _, s := range r.Ended() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}
