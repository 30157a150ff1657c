package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mrzor/gctrace-enrich/internal/config"
)

func TestIDGenerator_RandomByDefault(t *testing.T) {
	gen := NewIDGenerator()

	tid1, sid1 := gen.NewIDs(context.Background())
	tid2, sid2 := gen.NewIDs(context.Background())

	assert.True(t, tid1.IsValid())
	assert.True(t, sid1.IsValid())
	assert.NotEqual(t, tid1, tid2)
	assert.NotEqual(t, sid1, sid2)
}

func TestIDGenerator_TraceIDFromContext(t *testing.T) {
	want, err := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	require.NoError(t, err)

	ctx := ContextWithTraceID(context.Background(), want)
	got, sid := NewIDGenerator().NewIDs(ctx)

	assert.Equal(t, want, got)
	assert.True(t, sid.IsValid())
}

func TestIDGenerator_ZeroTraceIDIgnored(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), trace.TraceID{})

	_, ok := TraceIDFromContext(ctx)
	assert.False(t, ok)

	tid, _ := NewIDGenerator().NewIDs(ctx)
	assert.True(t, tid.IsValid())
}

func TestIDGenerator_WithSDK(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sr),
		sdktrace.WithIDGenerator(NewIDGenerator()),
	)
	tracer := tp.Tracer("test")

	want, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)

	ctx, root := tracer.Start(ContextWithTraceID(context.Background(), want), "GC")
	_, child := tracer.Start(ctx, "PinPPPs")
	child.End()
	root.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, want, s.SpanContext().TraceID(), s.Name())
	}
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestNewResource(t *testing.T) {
	cfg := &config.OTELConfig{
		ServiceName:        "gc-bench",
		ResourceAttributes: "deployment.environment=ci",
	}

	res, err := NewResource(context.Background(), cfg, "1.2.3")
	require.NoError(t, err)

	attrs := res.Set()
	name, ok := attrs.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "gc-bench", name.AsString())

	version, ok := attrs.Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, "1.2.3", version.AsString())

	env, ok := attrs.Value("deployment.environment")
	require.True(t, ok)
	assert.Equal(t, "ci", env.AsString())
}

func TestInitProvider_Shutdown(t *testing.T) {
	cfg := &config.OTELConfig{ServiceName: "gctrace-enrich", ExporterEndpoint: "localhost:4318", Insecure: true}

	tp, err := InitProvider(cfg, "dev", zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, ShutdownProvider(ctx, tp))
	assert.NoError(t, ShutdownProvider(ctx, nil))
}
