package otel

import (
	"context"
	"crypto/rand"

	"go.opentelemetry.io/otel/trace"
)

type traceIDKey struct{}

// ContextWithTraceID returns a context in which new root spans use id as
// their trace ID. Child spans inherit their parent's trace ID as usual.
func ContextWithTraceID(ctx context.Context, id trace.TraceID) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceIDFromContext returns the trace ID set by ContextWithTraceID.
func TraceIDFromContext(ctx context.Context) (trace.TraceID, bool) {
	id, ok := ctx.Value(traceIDKey{}).(trace.TraceID)
	return id, ok && id.IsValid()
}

// IDGenerator is an sdktrace.IDGenerator producing random IDs, except for
// root spans whose context carries a trace ID.
type IDGenerator struct{}

// NewIDGenerator creates an IDGenerator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// NewIDs returns the trace ID from ctx, or a random one, and a random span ID.
func (g *IDGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	tid, ok := TraceIDFromContext(ctx)
	for !ok {
		_, _ = rand.Read(tid[:])
		ok = tid.IsValid()
	}
	return tid, g.NewSpanID(ctx, tid)
}

// NewSpanID returns a random non-zero span ID.
func (g *IDGenerator) NewSpanID(_ context.Context, _ trace.TraceID) trace.SpanID {
	var sid trace.SpanID
	for !sid.IsValid() {
		_, _ = rand.Read(sid[:])
	}
	return sid
}
