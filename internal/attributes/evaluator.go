package attributes

import (
	"errors"
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/mrzor/gctrace-enrich/internal/config"
	"github.com/mrzor/gctrace-enrich/internal/eventprocessor"
	"github.com/mrzor/gctrace-enrich/internal/scope"
)

// eventEnv is the type-checking environment for derived attributes.
//
//	name   display name (packet name for work packets)
//	event  raw event name
//	phase  "B", "E" or "i"
//	tid    thread id
//	ts     monotonic timestamp in ns
//	args   enriched arguments so far
//	raw    positional string arguments
//	run    current run context
//	seq    current run number, 0 outside a run
func eventEnv() map[string]any {
	return map[string]any{
		"name":  "",
		"event": "",
		"phase": "",
		"tid":   int64(0),
		"ts":    int64(0),
		"args":  map[string]any{},
		"raw":   []string{},
		"run":   map[string]any{},
		"seq":   0,
	}
}

// Evaluator handles compilation and evaluation of derived attribute expressions.
type Evaluator struct {
	customAttrs   []config.CustomAttribute
	compiledExprs []*vm.Program
}

// NewEvaluator creates a new attribute evaluator.
// It pre-compiles all expressions so syntax errors surface before any input
// is read.
func NewEvaluator(customAttrs []config.CustomAttribute) (*Evaluator, error) {
	exprEnv := eventEnv()

	compiledExprs := make([]*vm.Program, len(customAttrs))
	for i, attr := range customAttrs {
		program, err := expr.Compile(attr.Expression, expr.Env(exprEnv))
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression for attribute %q: %w", attr.Name, err)
		}
		compiledExprs[i] = program
	}

	return &Evaluator{
		customAttrs:   customAttrs,
		compiledExprs: compiledExprs,
	}, nil
}

// Len returns the number of configured attributes.
func (e *Evaluator) Len() int {
	return len(e.customAttrs)
}

// ErrNonFinite is returned for expressions that produce Inf or NaN, which no
// output format can encode.
var ErrNonFinite = errors.New("non-finite number")

func checkFinite(v any) error {
	switch x := v.(type) {
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return fmt.Errorf("%w: %v", ErrNonFinite, x)
		}
	case float32:
		return checkFinite(float64(x))
	case map[string]any:
		for k, inner := range x {
			if err := checkFinite(inner); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
	}
	return nil
}

// Derive evaluates every expression against an enriched event.
// Nil results are dropped and map results become nested bags. Results
// holding Inf or NaN are dropped as failures. A failing
// expression does not stop the others; the failures are joined into the
// returned error.
func (e *Evaluator) Derive(ev *eventprocessor.Enriched, run *scope.Run) (scope.Bag, error) {
	if len(e.customAttrs) == 0 || ev == nil {
		return nil, nil
	}

	env := map[string]any{
		"name":  ev.DisplayName,
		"event": ev.Event.Name,
		"phase": ev.Event.Phase.String(),
		"tid":   ev.Event.ThreadID,
		"ts":    ev.Event.Timestamp,
		"args":  ev.Args.Map(),
		"raw":   []string(ev.Event.Args),
		"run":   map[string]any{},
		"seq":   0,
	}
	// The closing event of a run sees the run it closes.
	if ev.Run != nil {
		run = ev.Run
	}
	if run != nil {
		env["run"] = run.Resources.Map()
		env["seq"] = run.Seq
	}

	out := scope.NewBag()
	var errs []error
	for i, customAttr := range e.customAttrs {
		output, err := expr.Run(e.compiledExprs[i], env)
		if err != nil {
			errs = append(errs, fmt.Errorf("attribute %q: %w", customAttr.Name, err))
			continue
		}
		if output == nil {
			continue
		}
		if err := checkFinite(output); err != nil {
			errs = append(errs, fmt.Errorf("attribute %q: %w", customAttr.Name, err))
			continue
		}
		if m, ok := output.(map[string]any); ok {
			out.Sub(customAttr.Name).Merge(sanitizeKeys(m))
			continue
		}
		out.Set(customAttr.Name, output)
	}

	return out, errors.Join(errs...)
}

func sanitizeKeys(m map[string]any) scope.Bag {
	b := scope.NewBag()
	for k, v := range m {
		key := sanitizeAttributeName(k)
		if nested, ok := v.(map[string]any); ok {
			b.Sub(key).Merge(sanitizeKeys(nested))
			continue
		}
		b.Set(key, v)
	}
	return b
}

// sanitizeAttributeName replaces non-alphanumeric characters with underscores.
// Keys become dot-separated OpenTelemetry attribute names once flattened.
func sanitizeAttributeName(name string) string {
	result := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result[i] = c
		} else {
			result[i] = '_'
		}
	}
	return string(result)
}
