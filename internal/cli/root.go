// Package cli implements the gctrace-enrich commands.
package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// BuildInfo is the version information injected at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// app is the state shared by the commands of one invocation.
type app struct {
	info    BuildInfo
	verbose bool
	logger  *zap.Logger
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// NewRootCommand builds the command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	a := &app{info: info, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "gctrace-enrich",
		Short: "Enrich garbage collector trace events",
		Long: "Reads bpftrace captures of GC trace events, derives structured arguments from\n" +
			"each event and its run and work packet context, and writes Chrome trace JSON,\n" +
			"NDJSON, msgpack or OTLP spans.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.verbose)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(
		newEnrichCommand(a),
		newHandlersCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs the command line in args.
func Execute(ctx context.Context, info BuildInfo, args []string) error {
	root := NewRootCommand(info)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
