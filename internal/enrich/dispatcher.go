package enrich

import (
	"github.com/mrzor/gctrace-enrich/internal/gcevent"
	"github.com/mrzor/gctrace-enrich/internal/scope"
)

// Dispatcher routes events to the handler registered for their name.
// It holds no state besides the registry.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over a registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Registry returns the table the dispatcher routes through.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs the handler for ev, if any.
//
// matched reports whether a handler accepted the event. Unknown names and
// phases a handler does not accept are not errors. On error no context has
// been modified; the error is a *HandlerError wrapping ErrMalformedArguments
// or ErrMissingWorkPacket.
func (d *Dispatcher) Dispatch(ev gcevent.Event, run *scope.Run, wp *scope.WorkPacket, out scope.Bag) (matched bool, err error) {
	h, ok := d.registry.Lookup(ev.Name)
	if !ok || !h.AcceptsPhase(ev.Phase) {
		return false, nil
	}

	if run == nil {
		return true, &HandlerError{Event: ev.Name, Err: ErrNoRunContext}
	}
	if err := ev.Args.Require(h.Arity); err != nil {
		return true, &HandlerError{Event: ev.Name, Err: err}
	}
	if h.NeedsWorkPacket && wp == nil {
		return true, &HandlerError{Event: ev.Name, Err: ErrMissingWorkPacket}
	}

	inv := &Invocation{
		Event:      ev,
		Args:       ev.Args,
		Run:        run,
		WorkPacket: wp,
		Output:     out,
	}
	if err := h.Fn(inv); err != nil {
		return true, &HandlerError{Event: ev.Name, Err: err}
	}
	return true, nil
}
