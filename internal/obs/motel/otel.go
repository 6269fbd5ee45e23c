// Package motel carries the request-scoped tracer the way
// common/mopentelemetry does for the teacher platform: a thin wrapper
// so call sites say motel.NewTracerFromContext(ctx) instead of reaching
// into the global otel provider directly.
package motel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ideal-world/bios"

type ctxKey struct{}

// NewContext attaches a tracer to ctx.
func NewContext(ctx context.Context, tracer trace.Tracer) context.Context {
	return context.WithValue(ctx, ctxKey{}, tracer)
}

// NewTracerFromContext returns the tracer attached to ctx, or the
// global tracer for this module if none was attached.
func NewTracerFromContext(ctx context.Context) trace.Tracer {
	if t, ok := ctx.Value(ctxKey{}).(trace.Tracer); ok && t != nil {
		return t
	}

	return otel.Tracer(tracerName)
}

// HandleSpanError records err on span and marks it as failed.
func HandleSpanError(span *trace.Span, msg string, err error) {
	if span == nil || err == nil {
		return
	}

	(*span).SetStatus(codes.Error, msg+": "+err.Error())
	(*span).RecordError(err)
}
