package output

import (
	"fmt"
	"io"

	"github.com/mrzor/gctrace-enrich/internal/config"
	"github.com/mrzor/gctrace-enrich/internal/eventprocessor"
	"github.com/mrzor/gctrace-enrich/internal/scope"
)

// Sink receives enriched events in stream order.
type Sink interface {
	eventprocessor.EnrichedHandler
	// Finish flushes the output. residual is the run context still open at
	// end of stream, or nil.
	Finish(residual *scope.Run) error
}

// Record is the serialized form of one enriched event.
type Record struct {
	Name      string         `json:"name" msgpack:"name"`
	Phase     string         `json:"ph" msgpack:"ph"`
	ThreadID  int64          `json:"tid" msgpack:"tid"`
	Timestamp int64          `json:"ts" msgpack:"ts"`
	Args      map[string]any `json:"args,omitempty" msgpack:"args,omitempty"`
}

// NewRecord converts an enriched event. Work packet events carry their
// packet name.
func NewRecord(ev *eventprocessor.Enriched) Record {
	r := Record{
		Name:      ev.DisplayName,
		Phase:     ev.Event.Phase.String(),
		ThreadID:  ev.Event.ThreadID,
		Timestamp: ev.Event.Timestamp,
	}
	if r.Name == "" {
		r.Name = ev.Event.Name
	}
	if !ev.Args.Empty() {
		r.Args = ev.Args.Map()
	}
	return r
}

// residualRecord is the trailing metadata record of line-oriented sinks.
func residualRecord(run *scope.Run) Record {
	return Record{
		Name:      "run",
		Phase:     "M",
		ThreadID:  run.ThreadID,
		Timestamp: run.Begin,
		Args:      run.Resources.Map(),
	}
}

// NewSink returns the file sink for format. OTLP export is not a file
// format and is built with NewOTELFormatter instead.
func NewSink(format string, w io.Writer) (Sink, error) {
	switch format {
	case config.FormatChrome:
		return NewChromeWriter(w), nil
	case config.FormatNDJSON:
		return NewNDJSONWriter(w), nil
	case config.FormatMsgpack:
		return NewMsgpackWriter(w), nil
	default:
		return nil, fmt.Errorf("format %q has no file sink", format)
	}
}
