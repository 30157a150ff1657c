package output

import (
	"bufio"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mrzor/gctrace-enrich/internal/eventprocessor"
	"github.com/mrzor/gctrace-enrich/internal/scope"
)

// MsgpackWriter writes records as a stream of msgpack maps. Map keys are
// sorted so identical input yields identical bytes.
type MsgpackWriter struct {
	w   *bufio.Writer
	enc *msgpack.Encoder
}

// NewMsgpackWriter creates a writer on w.
func NewMsgpackWriter(w io.Writer) *MsgpackWriter {
	bw := bufio.NewWriter(w)
	enc := msgpack.NewEncoder(bw)
	enc.SetSortMapKeys(true)
	return &MsgpackWriter{w: bw, enc: enc}
}

func (m *MsgpackWriter) HandleEnriched(ev *eventprocessor.Enriched) error {
	return m.enc.Encode(NewRecord(ev))
}

func (m *MsgpackWriter) Finish(residual *scope.Run) error {
	if residual != nil {
		if err := m.enc.Encode(residualRecord(residual)); err != nil {
			return err
		}
	}
	return m.w.Flush()
}
