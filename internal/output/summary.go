package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/mrzor/gctrace-enrich/internal/eventprocessor"
)

var (
	sourceColor  = color.New(color.Bold)
	countColor   = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
)

// Summary describes one processed stream.
type Summary struct {
	Source  string
	Stats   eventprocessor.Stats
	Skipped int // input lines that carried no event
}

// WriteSummary prints a one-line report of s. Warnings are highlighted when
// there are any.
func WriteSummary(w io.Writer, s Summary) error {
	warnings := countColor.Sprint(s.Stats.Warnings)
	if s.Stats.Warnings > 0 {
		warnings = warningColor.Sprint(s.Stats.Warnings)
	}

	_, err := fmt.Fprintf(w, "%s: %s events, %s enriched, %s unrecognized, %s warnings (%d runs, %d work packets, %d lines skipped)\n",
		sourceColor.Sprint(s.Source),
		countColor.Sprint(s.Stats.Events),
		countColor.Sprint(s.Stats.Enriched),
		countColor.Sprint(s.Stats.Unrecognized),
		warnings,
		s.Stats.Runs,
		s.Stats.WorkPackets,
		s.Skipped,
	)
	return err
}
