package enrich

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mrzor/gctrace-enrich/internal/gcevent"
	"github.com/mrzor/gctrace-enrich/internal/scope"
)

// DefaultVM is the tag written on plan_end_of_gc when none is configured.
const DefaultVM = "Ruby"

// Pattern names the derivation a handler performs. It is descriptive only.
type Pattern string

const (
	PatternTag       Pattern = "tag"
	PatternCount     Pattern = "count"
	PatternDiff      Pattern = "diff"
	PatternRange     Pattern = "range"
	PatternInit      Pattern = "correlated-init"
	PatternFinal     Pattern = "correlated-final"
	PatternComposite Pattern = "composite"
)

// Invocation is everything a handler may read or write for one event.
type Invocation struct {
	Event gcevent.Event
	Args  gcevent.Args

	Run        *scope.Run
	WorkPacket *scope.WorkPacket // nil when no packet is active on the thread
	Output     scope.Bag
}

// HandlerFunc enriches one event.
type HandlerFunc func(inv *Invocation) error

// Handler is a registry entry.
type Handler struct {
	Name string
	// Arity is the minimum argument count; shorter lists are rejected before
	// Fn runs.
	Arity int
	// Phases restricts the handler to the listed phases. Empty means any.
	Phases          []gcevent.Phase
	NeedsWorkPacket bool
	Pattern         Pattern
	// Target names the context the handler writes: "output", "work_packet"
	// or "run".
	Target string
	Fn     HandlerFunc
}

// AcceptsPhase reports whether the handler runs for events of phase p.
func (h *Handler) AcceptsPhase(p gcevent.Phase) bool {
	if len(h.Phases) == 0 {
		return true
	}
	for _, want := range h.Phases {
		if want == p {
			return true
		}
	}
	return false
}

// Options configure the built-in handler table.
type Options struct {
	// VM is the tag written by the begin-phase tagging handler.
	VM string
	// Disabled lists handler names to leave out of the table.
	Disabled []string
}

// Registry is the static name -> handler table.
type Registry struct {
	handlers map[string]*Handler
}

// NewRegistry builds the table of built-in handlers.
// Naming an unknown handler in Options.Disabled is an error.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.VM == "" {
		opts.VM = DefaultVM
	}

	r := &Registry{handlers: make(map[string]*Handler)}
	for _, h := range builtinHandlers(opts) {
		if _, dup := r.handlers[h.Name]; dup {
			return nil, fmt.Errorf("duplicate handler %q", h.Name)
		}
		r.handlers[h.Name] = h
	}

	var unknown []string
	for _, name := range opts.Disabled {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := r.handlers[name]; !ok {
			unknown = append(unknown, name)
			continue
		}
		delete(r.handlers, name)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("cannot disable unknown handlers: %s", strings.Join(unknown, ", "))
	}

	return r, nil
}

// Lookup returns the handler registered for an event name.
func (r *Registry) Lookup(name string) (*Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered event names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handlers returns the registered handlers sorted by name.
func (r *Registry) Handlers() []*Handler {
	names := r.Names()
	out := make([]*Handler, len(names))
	for i, name := range names {
		out[i] = r.handlers[name]
	}
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	return len(r.handlers)
}
