package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mrzor/gctrace-enrich/internal/correlate"
	"github.com/mrzor/gctrace-enrich/internal/enrich"
	"github.com/mrzor/gctrace-enrich/internal/gcevent"
	"github.com/mrzor/gctrace-enrich/internal/scope"
)

const (
	// DefaultRunEvent is the span that delimits one GC run.
	DefaultRunEvent = "GC"
	// DefaultWorkEvent is the span that delimits one work packet.
	DefaultWorkEvent = "WORK"
)

var (
	// ErrUnmatchedEnd is recorded when an End event closes a run or work packet
	// that was never opened.
	ErrUnmatchedEnd = errors.New("end without matching begin")
	// ErrUnterminatedRun is recorded when a run begins while another is open.
	// The open run is dropped.
	ErrUnterminatedRun = errors.New("run began before the previous one ended")
	// ErrUnterminatedWork is recorded for each work packet discarded because
	// an End event closed a packet it was nested in.
	ErrUnterminatedWork = errors.New("work packet closed by an enclosing end")
)

// CarriedRunKey is the output key under which a run Begin event carries the
// context of the run it replaces: events seen outside any run, or a run that
// never ended.
const CarriedRunKey = "run"

// Kind classifies an enriched event by its role in the context layers.
type Kind uint8

const (
	KindEvent Kind = iota
	KindRunBegin
	KindRunEnd
	KindWorkBegin
	KindWorkEnd
)

func (k Kind) String() string {
	switch k {
	case KindRunBegin:
		return "run_begin"
	case KindRunEnd:
		return "run_end"
	case KindWorkBegin:
		return "work_begin"
	case KindWorkEnd:
		return "work_end"
	default:
		return "event"
	}
}

// Source yields trace events in stream order. Next returns io.EOF at the end
// of the stream; any other error is fatal.
type Source interface {
	Next() (gcevent.Event, error)
}

// Enriched is one input event together with its enriched arguments.
type Enriched struct {
	Index int
	Event gcevent.Event
	Kind  Kind
	// DisplayName is the packet name for work packet events, otherwise the
	// event name.
	DisplayName string
	Args        scope.Bag
	// Run is set on the Begin and End events of a GC run. A Begin event's Args
	// hold the replaced run's context under CarriedRunKey when it was not
	// empty.
	Run *scope.Run
	// WorkPacket is set on the Begin and matched End events of a work packet.
	WorkPacket *scope.WorkPacket
}

// EnrichedHandler consumes enriched events.
type EnrichedHandler interface {
	HandleEnriched(ev *Enriched) error
}

// Deriver computes extra output fields once handlers have run.
type Deriver interface {
	Derive(ev *Enriched, run *scope.Run) (scope.Bag, error)
}

// Warning is a recovered per-event failure.
type Warning struct {
	Index int
	Event gcevent.Event
	Err   error
}

func (w Warning) String() string {
	return fmt.Sprintf("event %d (%s): %v", w.Index, w.Event.Name, w.Err)
}

// Stats counts what happened to the stream.
type Stats struct {
	Events       int
	Enriched     int
	Unrecognized int
	Warnings     int
	Runs         int
	WorkPackets  int
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger warnings are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRunEvent sets the name of the span that delimits a GC run.
func WithRunEvent(name string) Option {
	return func(p *Processor) {
		if name != "" {
			p.runEvent = name
		}
	}
}

// WithWorkEvents sets the names of spans that delimit work packets.
func WithWorkEvents(names ...string) Option {
	return func(p *Processor) {
		set := make(map[string]bool, len(names))
		for _, n := range names {
			if n != "" {
				set[n] = true
			}
		}
		if len(set) > 0 {
			p.workEvents = set
		}
	}
}

// WithDeriver adds a post-handler field deriver.
func WithDeriver(d Deriver) Option {
	return func(p *Processor) {
		p.deriver = d
	}
}

// Processor owns the context layers of one stream and feeds each event to the
// dispatcher. It is not safe for concurrent use.
type Processor struct {
	dispatcher *enrich.Dispatcher
	handler    EnrichedHandler
	deriver    Deriver
	logger     *zap.Logger

	runEvent   string
	workEvents map[string]bool

	tracker  *scope.Tracker
	run      *scope.Run
	index    int
	stats    Stats
	warnings []Warning
}

// NewProcessor creates a new event processor.
func NewProcessor(dispatcher *enrich.Dispatcher, handler EnrichedHandler, opts ...Option) *Processor {
	p := &Processor{
		dispatcher: dispatcher,
		handler:    handler,
		logger:     zap.NewNop(),
		runEvent:   DefaultRunEvent,
		workEvents: map[string]bool{DefaultWorkEvent: true},
		tracker:    scope.NewTracker(),
		run:        scope.NewRun(0, 0, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes every event of src in order until EOF, a fatal source error,
// a handler error, or cancellation of ctx.
func (p *Processor) Run(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := p.HandleEvent(ev); err != nil {
			return err
		}
	}
}

// HandleEvent enriches one event and passes it on.
// Enrichment failures are recorded as warnings; only an error from the
// EnrichedHandler is returned.
func (p *Processor) HandleEvent(ev gcevent.Event) error {
	idx := p.index
	p.index++
	p.stats.Events++

	enriched := &Enriched{
		Index:       idx,
		Event:       ev,
		DisplayName: ev.Name,
		Args:        scope.NewBag(),
	}

	isRun := ev.Name == p.runEvent
	isWork := p.workEvents[ev.Name]

	if isRun && ev.Phase == gcevent.PhaseBegin {
		p.beginRun(idx, ev, enriched)
		enriched.Kind = KindRunBegin
		enriched.Run = p.run
	}
	if isWork && ev.Phase == gcevent.PhaseBegin {
		wp := p.tracker.Open(ev.ThreadID, packetName(ev), ev.Timestamp)
		enriched.Kind = KindWorkBegin
		enriched.DisplayName = wp.Name
		enriched.WorkPacket = wp
		p.stats.WorkPackets++
	}

	wp := p.tracker.Current(ev.ThreadID)
	matched, err := p.dispatcher.Dispatch(ev, p.run, wp, enriched.Args)
	switch {
	case err != nil:
		p.warn(idx, ev, err)
	case matched:
		p.stats.Enriched++
	case !isRun && !isWork:
		p.stats.Unrecognized++
	}

	if isWork && ev.Phase == gcevent.PhaseEnd {
		p.endWork(idx, ev, enriched)
	}
	if isRun && ev.Phase == gcevent.PhaseEnd {
		p.endRun(idx, ev, enriched)
	}

	if p.deriver != nil {
		derived, err := p.deriver.Derive(enriched, p.run)
		if err != nil {
			p.logger.Debug("derived attributes failed",
				zap.Int("index", idx),
				zap.String("event", ev.Name),
				zap.Error(err),
			)
		}
		enriched.Args.Merge(derived)
	}

	if p.handler == nil {
		return nil
	}
	if err := p.handler.HandleEnriched(enriched); err != nil {
		return fmt.Errorf("handling event %d (%s): %w", idx, ev.Name, err)
	}
	return nil
}

func (p *Processor) beginRun(idx int, ev gcevent.Event, enriched *Enriched) {
	if p.run.Seq != 0 {
		p.warn(idx, ev, ErrUnterminatedRun)
	}
	if !p.run.Resources.Empty() {
		enriched.Args.Sub(CarriedRunKey).Merge(p.run.Resources)
	}
	p.stats.Runs++
	p.run = scope.NewRun(p.stats.Runs, ev.ThreadID, ev.Timestamp)
}

func (p *Processor) endRun(idx int, ev gcevent.Event, enriched *Enriched) {
	if p.run.Seq == 0 {
		p.warn(idx, ev, ErrUnmatchedEnd)
	}
	for _, b := range correlate.Unresolved(p.run.Resources) {
		p.logger.Debug("baseline never resolved",
			zap.Int("run", p.run.Seq),
			zap.String("resource", b.Resource),
			zap.String("key", b.Key),
			zap.Int64("before", b.Value),
		)
	}
	enriched.Args.Merge(p.run.Resources)
	enriched.Kind = KindRunEnd
	enriched.Run = p.run
	p.run = scope.NewRun(0, ev.ThreadID, ev.Timestamp)
}

func (p *Processor) endWork(idx int, ev gcevent.Event, enriched *Enriched) {
	var (
		wp *scope.WorkPacket
		ok bool
	)
	if name, named := namedPacket(ev); named {
		for _, dropped := range p.tracker.Above(ev.ThreadID, name) {
			p.warn(idx, ev, fmt.Errorf("%w: %s", ErrUnterminatedWork, dropped.Name))
		}
		wp, ok = p.tracker.Close(ev.ThreadID, name)
	} else {
		wp, ok = p.tracker.CloseCurrent(ev.ThreadID)
	}
	if !ok {
		p.warn(idx, ev, ErrUnmatchedEnd)
		return
	}
	enriched.Kind = KindWorkEnd
	enriched.DisplayName = wp.Name
	enriched.Args.Merge(wp.Args)
	enriched.WorkPacket = wp
}

func (p *Processor) warn(idx int, ev gcevent.Event, err error) {
	p.stats.Warnings++
	p.warnings = append(p.warnings, Warning{Index: idx, Event: ev, Err: err})
	p.logger.Warn("enrichment skipped",
		zap.Int("index", idx),
		zap.String("event", ev.Name),
		zap.Int64("tid", ev.ThreadID),
		zap.Error(err),
	)
}

// Finish returns the run context that no GC End event claimed: the
// trace-wide context of a trace without run boundaries, or an unterminated
// run. It returns nil when that context is empty.
func (p *Processor) Finish() *scope.Run {
	if open := p.tracker.Active(); open > 0 {
		p.logger.Debug("work packets still open at end of stream", zap.Int("open", open))
	}
	if p.run.Resources.Empty() {
		return nil
	}
	return p.run
}

// Stats returns the counters so far.
func (p *Processor) Stats() Stats {
	return p.stats
}

// Warnings returns the recovered failures so far, in stream order.
func (p *Processor) Warnings() []Warning {
	return p.warnings
}

// packetName is the logical name of a work packet: its first argument (the
// packet type) when present, else the event name.
func packetName(ev gcevent.Event) string {
	if name, ok := namedPacket(ev); ok {
		return name
	}
	return ev.Name
}

func namedPacket(ev gcevent.Event) (string, bool) {
	name, err := ev.Args.Name(0)
	if err != nil {
		return "", false
	}
	return name, true
}
