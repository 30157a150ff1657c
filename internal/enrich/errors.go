package enrich

import (
	"errors"
	"fmt"

	"github.com/mrzor/gctrace-enrich/internal/gcevent"
)

var (
	// ErrMalformedArguments is returned when a handler's arguments are short
	// or of the wrong kind.
	ErrMalformedArguments = gcevent.ErrMalformedArguments

	// ErrMissingWorkPacket is returned when a handler needs an active work
	// packet on the event's thread and there is none.
	ErrMissingWorkPacket = errors.New("no active work packet")

	// ErrNoRunContext is returned when Dispatch is called without a run context.
	ErrNoRunContext = errors.New("no run context")
)

// HandlerError ties a handler failure to the event that caused it.
type HandlerError struct {
	Event string
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Event, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
