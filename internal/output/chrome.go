package output

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/mrzor/gctrace-enrich/internal/eventprocessor"
	"github.com/mrzor/gctrace-enrich/internal/gcevent"
	"github.com/mrzor/gctrace-enrich/internal/scope"
)

const (
	chromePID      = 1
	chromeCategory = "gc"
	generator      = "gctrace-enrich"
)

// chromeEvent is one entry of the traceEvents array.
// See https://docs.google.com/document/d/1CvAClvFfyA5R-PhYUmn5OOQtYMH4h6I0nSsKchNAySU
type chromeEvent struct {
	Name  string         `json:"name"`
	Cat   string         `json:"cat"`
	Phase string         `json:"ph"`
	TS    float64        `json:"ts"` // microseconds
	PID   int            `json:"pid"`
	TID   int64          `json:"tid"`
	Scope string         `json:"s,omitempty"`
	Args  map[string]any `json:"args,omitempty"`
}

// ChromeWriter streams a Chrome Trace Event Format JSON object:
//
//	{"traceEvents": [...], "otherData": {...}}
//
// The run context left open at end of stream goes to otherData.run.
type ChromeWriter struct {
	w *bufio.Writer
	n int
}

// NewChromeWriter creates a writer on w.
func NewChromeWriter(w io.Writer) *ChromeWriter {
	return &ChromeWriter{w: bufio.NewWriter(w)}
}

func (c *ChromeWriter) HandleEnriched(ev *eventprocessor.Enriched) error {
	rec := NewRecord(ev)
	ce := chromeEvent{
		Name:  rec.Name,
		Cat:   chromeCategory,
		Phase: rec.Phase,
		TS:    float64(rec.Timestamp) / 1e3,
		PID:   chromePID,
		TID:   rec.ThreadID,
		Args:  rec.Args,
	}
	if ev.Event.Phase == gcevent.PhaseInstant {
		ce.Scope = "t"
	}

	data, err := json.Marshal(ce)
	if err != nil {
		return err
	}
	if err := c.separator(); err != nil {
		return err
	}
	_, err = c.w.Write(data)
	return err
}

func (c *ChromeWriter) separator() error {
	sep := ",\n"
	if c.n == 0 {
		sep = "{\"traceEvents\":[\n"
	}
	c.n++
	_, err := c.w.WriteString(sep)
	return err
}

func (c *ChromeWriter) Finish(residual *scope.Run) error {
	if c.n == 0 {
		if _, err := c.w.WriteString("{\"traceEvents\":["); err != nil {
			return err
		}
	}

	other := map[string]any{"generator": generator}
	if residual != nil {
		other["run"] = residual.Resources.Map()
	}
	data, err := json.Marshal(other)
	if err != nil {
		return err
	}

	if _, err := c.w.WriteString("\n],\"otherData\":"); err != nil {
		return err
	}
	if _, err := c.w.Write(data); err != nil {
		return err
	}
	if _, err := c.w.WriteString("}\n"); err != nil {
		return err
	}
	return c.w.Flush()
}
