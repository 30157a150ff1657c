package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrzor/gctrace-enrich/internal/enrich"
)

func newHandlersCommand(a *app) *cobra.Command {
	var disabled []string

	cmd := &cobra.Command{
		Use:   "handlers",
		Short: "List the registered event handlers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := enrich.NewRegistry(enrich.Options{Disabled: disabled})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EVENT\tARITY\tPHASES\tPATTERN\tWRITES\tNEEDS PACKET")
			for _, h := range registry.Handlers() {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%t\n",
					h.Name, h.Arity, phases(h), h.Pattern, h.Target, h.NeedsWorkPacket)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			a.logger.Debug("listed handlers", zap.Int("count", registry.Len()))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&disabled, "disable", nil, "Handler names to leave out")
	return cmd
}

func phases(h *enrich.Handler) string {
	if len(h.Phases) == 0 {
		return "any"
	}
	names := make([]string, len(h.Phases))
	for i, p := range h.Phases {
		names[i] = p.String()
	}
	return strings.Join(names, ",")
}
