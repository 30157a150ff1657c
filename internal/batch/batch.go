package batch

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mrzor/gctrace-enrich/internal/attributes"
	"github.com/mrzor/gctrace-enrich/internal/config"
	"github.com/mrzor/gctrace-enrich/internal/enrich"
	"github.com/mrzor/gctrace-enrich/internal/eventprocessor"
	"github.com/mrzor/gctrace-enrich/internal/eventstream"
	"github.com/mrzor/gctrace-enrich/internal/output"
	"github.com/mrzor/gctrace-enrich/internal/timesync"
)

// Options configure a batch.
type Options struct {
	Config *config.Config
	Logger *zap.Logger

	// Tracer and Converter are required for the OTLP format.
	Tracer    trace.Tracer
	Converter *timesync.Converter

	Stdin  io.Reader
	Stdout io.Writer
}

// Result reports one processed job.
type Result struct {
	Job      Job
	Stats    eventprocessor.Stats
	Skipped  int
	Warnings []eventprocessor.Warning
}

// Summary returns the printable summary of r.
func (r Result) Summary() output.Summary {
	source := r.Job.Input
	if source == Stdio {
		source = "<stdin>"
	}
	return output.Summary{Source: source, Stats: r.Stats, Skipped: r.Skipped}
}

// pipeline holds what every job shares. All of it is read-only once built.
type pipeline struct {
	opts       Options
	dispatcher *enrich.Dispatcher
	deriver    *attributes.Evaluator
	traceIDs   *attributes.TraceIDEvaluator
	parentIDs  *attributes.ParentIDEvaluator
}

func newPipeline(opts Options) (*pipeline, error) {
	cfg := opts.Config
	registry, err := enrich.NewRegistry(enrich.Options{VM: cfg.VM, Disabled: cfg.DisabledHandlers})
	if err != nil {
		return nil, err
	}
	deriver, err := attributes.NewEvaluator(cfg.CustomAttributes)
	if err != nil {
		return nil, err
	}
	traceIDs, err := attributes.NewTraceIDEvaluator(cfg.TraceID)
	if err != nil {
		return nil, err
	}
	parentIDs, err := attributes.NewParentIDEvaluator(cfg.ParentID)
	if err != nil {
		return nil, err
	}
	if cfg.Format == config.FormatOTLP && opts.Tracer == nil {
		return nil, fmt.Errorf("format %s requires a tracer", cfg.Format)
	}

	return &pipeline{
		opts:       opts,
		dispatcher: enrich.NewDispatcher(registry),
		deriver:    deriver,
		traceIDs:   traceIDs,
		parentIDs:  parentIDs,
	}, nil
}

// Run processes jobs concurrently, at most Config.Jobs at a time. Results
// are returned in job order. The first failing job cancels the rest.
func Run(ctx context.Context, jobs []Job, opts Options) ([]Result, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	p, err := newPipeline(opts)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(opts.Config.Jobs, len(jobs)))

	for i, job := range jobs {
		g.Go(func() error {
			res, err := p.process(gctx, job)
			if err != nil {
				return fmt.Errorf("%s: %w", job.Input, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *pipeline) process(ctx context.Context, job Job) (res Result, err error) {
	res.Job = job
	logger := p.opts.Logger.With(zap.String("input", job.Input))

	in, closeIn, err := p.openInput(job.Input)
	if err != nil {
		return res, err
	}
	defer closeIn()

	sink, closeOut, err := p.openSink(job)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	cfg := p.opts.Config
	procOpts := []eventprocessor.Option{
		eventprocessor.WithLogger(logger),
		eventprocessor.WithRunEvent(cfg.RunEvent),
		eventprocessor.WithWorkEvents(cfg.WorkEvents...),
	}
	if p.deriver.Len() > 0 {
		procOpts = append(procOpts, eventprocessor.WithDeriver(p.deriver))
	}
	proc := eventprocessor.NewProcessor(p.dispatcher, sink, procOpts...)

	reader := eventstream.NewReader(in)
	if err := proc.Run(ctx, reader); err != nil {
		return res, err
	}
	if err := sink.Finish(proc.Finish()); err != nil {
		return res, fmt.Errorf("writing output: %w", err)
	}

	res.Stats = proc.Stats()
	res.Skipped = reader.Skipped()
	res.Warnings = proc.Warnings()
	logger.Debug("stream processed",
		zap.Int("events", res.Stats.Events),
		zap.Int("warnings", res.Stats.Warnings),
	)
	return res, nil
}

func (p *pipeline) openInput(path string) (io.Reader, func(), error) {
	if path == Stdio {
		return p.opts.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func (p *pipeline) openSink(job Job) (output.Sink, func() error, error) {
	cfg := p.opts.Config
	if cfg.Format == config.FormatOTLP {
		sink := output.NewOTELFormatter(p.opts.Tracer, output.OTELOptions{
			Source:    job.Input,
			Converter: p.opts.Converter,
			TraceID:   p.traceIDs,
			ParentID:  p.parentIDs,
			Logger:    p.opts.Logger,
		})
		return sink, func() error { return nil }, nil
	}

	var (
		w       io.Writer = p.opts.Stdout
		closeFn           = func() error { return nil }
	)
	if job.Output != Stdio {
		f, err := os.Create(job.Output)
		if err != nil {
			return nil, nil, fmt.Errorf("creating output: %w", err)
		}
		w, closeFn = f, f.Close
	}

	sink, err := output.NewSink(cfg.Format, w)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return sink, closeFn, nil
}
