package output

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"fortio.org/safecast"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mrzor/gctrace-enrich/internal/attributes"
	"github.com/mrzor/gctrace-enrich/internal/eventprocessor"
	"github.com/mrzor/gctrace-enrich/internal/gcevent"
	"github.com/mrzor/gctrace-enrich/internal/otel"
	"github.com/mrzor/gctrace-enrich/internal/scope"
	"github.com/mrzor/gctrace-enrich/internal/timesync"
)

// Span attribute keys.
const (
	attrRunSeq    = "gc.run.seq"
	attrEventName = "gc.event.name"
	attrEventArgs = "gc.event.args"
	attrSource    = "gc.source"

	residualSpanName = "gc.residual"
)

// OTELOptions configures an OTELFormatter.
type OTELOptions struct {
	// Source names the input stream. It is available to trace ID
	// expressions and recorded on run spans.
	Source    string
	Converter *timesync.Converter
	TraceID   *attributes.TraceIDEvaluator
	ParentID  *attributes.ParentIDEvaluator
	Logger    *zap.Logger
}

// openSpan is a span awaiting its End event. key is the *scope.WorkPacket for
// work packets and the event name for other Begin/End pairs.
type openSpan struct {
	key  any
	span trace.Span
	ctx  context.Context
}

// OTELFormatter turns enriched events into OpenTelemetry spans.
//
// GC runs become root spans carrying the Begin and End event arguments.
// Work packets and other Begin/End pairs become
// children of the innermost open span on their thread, or of the open run.
// Instants become span events; an instant with no open span becomes a
// zero-length span of its own.
type OTELFormatter struct {
	tracer  trace.Tracer
	opts    OTELOptions
	environ map[string]string
	logger  *zap.Logger

	run     *openSpan
	threads map[int64][]*openSpan
	last    time.Time
}

// NewOTELFormatter creates a new OTELFormatter.
func NewOTELFormatter(tracer trace.Tracer, opts OTELOptions) *OTELFormatter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Converter == nil {
		opts.Converter = timesync.NewConverterAt(time.Unix(0, 0))
	}
	return &OTELFormatter{
		tracer:  tracer,
		opts:    opts,
		environ: attributes.Environ(),
		logger:  logger,
		threads: make(map[int64][]*openSpan),
	}
}

// HandleEnriched formats one event.
func (f *OTELFormatter) HandleEnriched(ev *eventprocessor.Enriched) error {
	t, err := f.opts.Converter.EventTime(ev.Event.Timestamp)
	if err != nil {
		return err
	}
	if t.After(f.last) {
		f.last = t
	}

	tid := ev.Event.ThreadID
	switch ev.Kind {
	case eventprocessor.KindRunBegin:
		f.startRun(ev, t)
	case eventprocessor.KindRunEnd:
		f.endRun(ev, t)
	case eventprocessor.KindWorkBegin:
		f.push(tid, ev.WorkPacket, ev, t)
	case eventprocessor.KindWorkEnd:
		f.pop(tid, ev.WorkPacket, ev, t)
	default:
		switch ev.Event.Phase {
		case gcevent.PhaseBegin:
			f.push(tid, ev.Event.Name, ev, t)
		case gcevent.PhaseEnd:
			f.pop(tid, ev.Event.Name, ev, t)
		default:
			f.instant(ev, t)
		}
	}
	return nil
}

func (f *OTELFormatter) startRun(ev *eventprocessor.Enriched, t time.Time) {
	if f.run != nil {
		endUnterminated(f.run.span, t)
	}

	env := attributes.RunEnv{Source: f.opts.Source, Run: ev.Run, Environ: f.environ}
	ctx := context.Background()
	attrs := []attribute.KeyValue{
		attribute.Int(attrRunSeq, ev.Run.Seq),
		attribute.String(attrSource, f.opts.Source),
		threadAttr(ev.Event.ThreadID),
	}
	if !ev.Args.Empty() {
		attrs = append(attrs, bagAttributes(ev.Args)...)
	}

	traceID, warnings, err := f.opts.TraceID.EvaluateAndValidate(env)
	if err != nil {
		f.logger.Warn("trace id expression failed", zap.Int("run", ev.Run.Seq), zap.Error(err))
	}
	attrs = append(attrs, warnings...)

	parentID, warnings, err := f.opts.ParentID.EvaluateAndValidate(env)
	if err != nil {
		f.logger.Warn("parent id expression failed", zap.Int("run", ev.Run.Seq), zap.Error(err))
	}
	attrs = append(attrs, warnings...)

	switch {
	case traceID.IsValid() && parentID.IsValid():
		ctx = trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     parentID,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		}))
	case traceID.IsValid():
		ctx = otel.ContextWithTraceID(ctx, traceID)
	}

	ctx, span := f.tracer.Start(ctx, ev.DisplayName,
		trace.WithTimestamp(t),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	f.run = &openSpan{key: ev.Run, span: span, ctx: ctx}
}

func (f *OTELFormatter) endRun(ev *eventprocessor.Enriched, t time.Time) {
	if f.run == nil {
		f.logger.Debug("run end without span", zap.Int("index", ev.Index))
		return
	}
	endSpan(f.run.span, ev.Args, t)
	f.run = nil
}

// parent returns the context new spans on tid start from.
func (f *OTELFormatter) parent(tid int64) context.Context {
	if stack := f.threads[tid]; len(stack) > 0 {
		return stack[len(stack)-1].ctx
	}
	if f.run != nil {
		return f.run.ctx
	}
	return context.Background()
}

func (f *OTELFormatter) push(tid int64, key any, ev *eventprocessor.Enriched, t time.Time) {
	attrs := []attribute.KeyValue{threadAttr(tid)}
	if ev.DisplayName != ev.Event.Name {
		attrs = append(attrs, attribute.String(attrEventName, ev.Event.Name))
	}

	ctx, span := f.tracer.Start(f.parent(tid), ev.DisplayName,
		trace.WithTimestamp(t),
		trace.WithAttributes(attrs...),
	)
	if !ev.Args.Empty() {
		span.SetAttributes(bagAttributes(ev.Args)...)
	}
	f.threads[tid] = append(f.threads[tid], &openSpan{key: key, span: span, ctx: ctx})
}

// pop ends the innermost span on tid opened with key. Spans opened above it
// were never closed and end as unterminated. An End with no open span is
// ignored.
func (f *OTELFormatter) pop(tid int64, key any, ev *eventprocessor.Enriched, t time.Time) {
	stack := f.threads[tid]
	i := len(stack) - 1
	for ; i >= 0; i-- {
		if stack[i].key == key {
			break
		}
	}
	if i < 0 {
		f.logger.Debug("end without span", zap.Int("index", ev.Index), zap.String("event", ev.Event.Name))
		return
	}

	for _, open := range slices.Backward(stack[i+1:]) {
		endUnterminated(open.span, t)
	}
	endSpan(stack[i].span, ev.Args, t)

	clear(stack[i:])
	if i == 0 {
		delete(f.threads, tid)
		return
	}
	f.threads[tid] = stack[:i]
}

func (f *OTELFormatter) instant(ev *eventprocessor.Enriched, t time.Time) {
	attrs := bagAttributes(ev.Args)
	if len(ev.Event.Args) > 0 {
		attrs = append(attrs, attribute.StringSlice(attrEventArgs, ev.Event.Args))
	}

	tid := ev.Event.ThreadID
	var target trace.Span
	if stack := f.threads[tid]; len(stack) > 0 {
		target = stack[len(stack)-1].span
	} else if f.run != nil {
		target = f.run.span
	}

	if target != nil {
		target.AddEvent(ev.Event.Name, trace.WithTimestamp(t), trace.WithAttributes(attrs...))
		return
	}

	_, span := f.tracer.Start(context.Background(), ev.Event.Name,
		trace.WithTimestamp(t),
		trace.WithAttributes(append(attrs, threadAttr(tid))...),
	)
	span.End(trace.WithTimestamp(t))
}

// Finish ends every span still open at the last seen timestamp. A residual
// run context is exported as a span of its own.
func (f *OTELFormatter) Finish(residual *scope.Run) error {
	tids := make([]int64, 0, len(f.threads))
	for tid := range f.threads {
		tids = append(tids, tid)
	}
	sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })

	for _, tid := range tids {
		for _, open := range slices.Backward(f.threads[tid]) {
			endUnterminated(open.span, f.last)
		}
		delete(f.threads, tid)
	}
	if f.run != nil {
		endUnterminated(f.run.span, f.last)
		f.run = nil
	}

	if residual == nil || residual.Resources.Empty() {
		return nil
	}
	start, err := f.opts.Converter.EventTime(residual.Begin)
	if err != nil {
		return fmt.Errorf("residual run: %w", err)
	}
	end := f.last
	if end.Before(start) {
		end = start
	}
	_, span := f.tracer.Start(context.Background(), residualSpanName,
		trace.WithTimestamp(start),
		trace.WithAttributes(attribute.String(attrSource, f.opts.Source)),
	)
	endSpan(span, residual.Resources, end)
	return nil
}

func endSpan(span trace.Span, args scope.Bag, t time.Time) {
	if !args.Empty() {
		span.SetAttributes(bagAttributes(args)...)
	}
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(t))
}

func endUnterminated(span trace.Span, t time.Time) {
	span.SetStatus(codes.Error, "unterminated")
	span.End(trace.WithTimestamp(t))
}

func threadAttr(tid int64) attribute.KeyValue {
	id, err := safecast.Conv[int](tid)
	if err != nil {
		return semconv.ThreadIDKey.Int64(tid)
	}
	return semconv.ThreadID(id)
}

// bagAttributes flattens b into span attributes, sorted by key.
func bagAttributes(b scope.Bag) []attribute.KeyValue {
	flat := b.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		switch v := flat[k].(type) {
		case int64:
			attrs = append(attrs, attribute.Int64(k, v))
		case string:
			attrs = append(attrs, attribute.String(k, v))
		case float64:
			attrs = append(attrs, attribute.Float64(k, v))
		case bool:
			attrs = append(attrs, attribute.Bool(k, v))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(v)))
		}
	}
	return attrs
}
