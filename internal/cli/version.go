package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var versionColor = color.New(color.FgYellow, color.Bold)

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "gctrace-enrich %s (commit: %s, built: %s)\n",
				versionColor.Sprint(a.info.Version), a.info.Commit, a.info.Date)
			return err
		},
	}
}
