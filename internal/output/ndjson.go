package output

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/mrzor/gctrace-enrich/internal/eventprocessor"
	"github.com/mrzor/gctrace-enrich/internal/scope"
)

// NDJSONWriter writes one JSON record per line.
type NDJSONWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewNDJSONWriter creates a writer on w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &NDJSONWriter{w: bw, enc: enc}
}

// HandleEnriched writes ev as a line.
func (n *NDJSONWriter) HandleEnriched(ev *eventprocessor.Enriched) error {
	return n.enc.Encode(NewRecord(ev))
}

// Finish writes the residual run as a trailing "run" metadata record and
// flushes.
func (n *NDJSONWriter) Finish(residual *scope.Run) error {
	if residual != nil {
		if err := n.enc.Encode(residualRecord(residual)); err != nil {
			return err
		}
	}
	return n.w.Flush()
}
