package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mrzor/gctrace-enrich/internal/batch"
	"github.com/mrzor/gctrace-enrich/internal/config"
	"github.com/mrzor/gctrace-enrich/internal/otel"
	"github.com/mrzor/gctrace-enrich/internal/output"
	"github.com/mrzor/gctrace-enrich/internal/timesync"
)

const shutdownTimeout = 5 * time.Second

// enrichFlags holds the enrich command line. Only flags the user set
// override the file and environment configuration.
type enrichFlags struct {
	configPath string
	format     string
	output     string
	vm         string
	runEvent   string
	workEvents []string
	disabled   []string
	attributes []string
	traceID    string
	parentID   string
	jobs       int
	bootTime   string
	quiet      bool
}

func newEnrichCommand(a *app) *cobra.Command {
	var f enrichFlags

	cmd := &cobra.Command{
		Use:   "enrich [capture...]",
		Short: "Enrich one or more bpftrace captures",
		Long: "Enrich reads captures given as arguments, or standard input when there are\n" +
			"none or the argument is '-'. Configuration is read from --config, then\n" +
			"GCTRACE_* environment variables, then flags; later sources win.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			return a.runEnrich(cmd, cfg, &f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "Configuration file (.yaml, .yml or .toml)")
	fl.StringVarP(&f.format, "format", "f", "", "Output format: "+strings.Join(config.Formats, ", "))
	fl.StringVarP(&f.output, "output", "o", "", "Output file, or directory for several captures")
	fl.StringVar(&f.vm, "vm", "", "VM tag recorded by plan_end_of_gc")
	fl.StringVar(&f.runEvent, "run-event", "", "Event delimiting a GC run")
	fl.StringSliceVar(&f.workEvents, "work-event", nil, "Events delimiting work packets")
	fl.StringSliceVar(&f.disabled, "disable", nil, "Handler names to leave out")
	fl.StringArrayVarP(&f.attributes, "attribute", "a", nil, "Derived attribute NAME=EXPR (repeatable)")
	fl.StringVar(&f.traceID, "trace-id", "", "Expression for the OTLP trace ID of each GC run")
	fl.StringVar(&f.parentID, "parent-id", "", "Expression for the parent span ID of each GC run")
	fl.IntVarP(&f.jobs, "jobs", "j", 0, "Captures processed at once")
	fl.StringVar(&f.bootTime, "boot-time", "", "Boot time of the traced host (RFC 3339) for OTLP timestamps")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "Do not print per-capture summaries")

	return cmd
}

// resolve builds the configuration: defaults, then the file, then the
// environment, then flags.
func (f *enrichFlags) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()

	if f.configPath != "" {
		fc, err := config.LoadFile(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg.ApplyFile(fc)
	}

	envCfg, err := config.ParseEnvConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(envCfg); err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("format") {
		cfg.Format = f.format
	}
	if changed("output") {
		cfg.Output = f.output
	}
	if changed("vm") {
		cfg.VM = f.vm
	}
	if changed("run-event") {
		cfg.RunEvent = f.runEvent
	}
	if changed("work-event") {
		cfg.WorkEvents = f.workEvents
	}
	if changed("disable") {
		cfg.DisabledHandlers = f.disabled
	}
	if changed("trace-id") {
		cfg.TraceID = f.traceID
	}
	if changed("parent-id") {
		cfg.ParentID = f.parentID
	}
	if changed("jobs") {
		cfg.Jobs = f.jobs
	}
	if changed("attribute") {
		cfg.CustomAttributes = nil
		for _, s := range f.attributes {
			attr, err := config.ParseAttribute(s)
			if err != nil {
				return nil, err
			}
			cfg.CustomAttributes = append(cfg.CustomAttributes, attr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// converter returns the timestamp converter for OTLP export.
func (f *enrichFlags) converter() (*timesync.Converter, error) {
	if f.bootTime == "" {
		return timesync.NewConverter()
	}
	bt, err := time.Parse(time.RFC3339Nano, f.bootTime)
	if err != nil {
		return nil, fmt.Errorf("invalid --boot-time: %w", err)
	}
	return timesync.NewConverterAt(bt), nil
}

// setupOTEL initializes the OTEL provider and returns a tracer and cleanup function.
func (a *app) setupOTEL() (trace.Tracer, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, err
	}

	tp, err := otel.InitProvider(otelCfg, a.info.Version, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OTEL provider: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otel.ShutdownProvider(shutdownCtx, tp); err != nil {
			a.logger.Error("shutting down OTEL provider", zap.Error(err))
		}
	}

	return tp.Tracer("gctrace-enrich"), cleanup, nil
}

func (a *app) runEnrich(cmd *cobra.Command, cfg *config.Config, f *enrichFlags, inputs []string) error {
	jobs, err := batch.Plan(inputs, cfg.Format, cfg.Output)
	if err != nil {
		return err
	}

	opts := batch.Options{
		Config: cfg,
		Logger: a.logger,
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
	}

	if cfg.Format == config.FormatOTLP {
		converter, err := f.converter()
		if err != nil {
			return err
		}
		tracer, cleanup, err := a.setupOTEL()
		if err != nil {
			return err
		}
		defer cleanup()
		opts.Tracer = tracer
		opts.Converter = converter
	}

	a.logger.Debug("enriching",
		zap.Strings("inputs", inputs),
		zap.String("format", cfg.Format),
		zap.Int("jobs", cfg.Jobs),
	)

	results, err := batch.Run(cmd.Context(), jobs, opts)
	if err != nil {
		return err
	}

	if f.quiet {
		return nil
	}
	for _, res := range results {
		if err := output.WriteSummary(cmd.ErrOrStderr(), res.Summary()); err != nil {
			return err
		}
	}
	return nil
}
