package gcevent

import "fmt"

// Phase marks where an event sits in a timed span.
type Phase uint8

const (
	// PhaseBegin opens a span.
	PhaseBegin Phase = iota + 1
	// PhaseEnd closes a span.
	PhaseEnd
	// PhaseInstant is an atomic point in time.
	PhaseInstant
)

// String returns the trace-event-format letter for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseBegin:
		return "B"
	case PhaseEnd:
		return "E"
	case PhaseInstant:
		return "i"
	default:
		return "unknown"
	}
}

// ParsePhase converts a phase field of a captured trace line.
// The capture scripts print "meta" for statistics probes; those are instants.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "B", "b":
		return PhaseBegin, nil
	case "E", "e":
		return PhaseEnd, nil
	case "i", "I", "meta":
		return PhaseInstant, nil
	default:
		return 0, fmt.Errorf("invalid phase: %q (expected: B|E|i|meta)", s)
	}
}

// Event is a single trace record. It is never modified after it is read.
type Event struct {
	Name      string
	Phase     Phase
	ThreadID  int64
	Timestamp int64 // monotonic nanoseconds
	Args      Args
}

// String formats the event the way it appears in a capture log.
func (e Event) String() string {
	return fmt.Sprintf("%s,%s,%d,%d%s", e.Name, e.Phase, e.ThreadID, e.Timestamp, e.Args.suffix())
}
