package gcevent

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedArguments reports an argument list that does not match the
// layout a handler expects: too short, or an element of the wrong kind.
var ErrMalformedArguments = errors.New("malformed arguments")

// ArgError describes which argument failed to parse.
type ArgError struct {
	Index  int
	Value  string
	Reason string
}

func (e *ArgError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("argument %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("argument %d (%q): %s", e.Index, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedArguments.
func (e *ArgError) Unwrap() error {
	return ErrMalformedArguments
}

// Args is the ordered raw argument list of an event.
type Args []string

// Len returns the number of arguments.
func (a Args) Len() int {
	return len(a)
}

// Require fails unless at least n arguments are present.
func (a Args) Require(n int) error {
	if len(a) < n {
		return &ArgError{Index: len(a), Reason: fmt.Sprintf("want %d arguments, got %d", n, len(a))}
	}
	return nil
}

// Int parses argument i as a decimal integer.
func (a Args) Int(i int) (int64, error) {
	if i < 0 || i >= len(a) {
		return 0, &ArgError{Index: i, Reason: "missing"}
	}
	v, err := strconv.ParseInt(strings.TrimSpace(a[i]), 10, 64)
	if err != nil {
		return 0, &ArgError{Index: i, Value: a[i], Reason: "not a decimal integer"}
	}
	return v, nil
}

// Ints parses the first n arguments as integers.
func (a Args) Ints(n int) ([]int64, error) {
	if err := a.Require(n); err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		v, err := a.Int(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Name returns argument i as a resource name. Names are free-form but must be
// non-empty.
func (a Args) Name(i int) (string, error) {
	if i < 0 || i >= len(a) {
		return "", &ArgError{Index: i, Reason: "missing"}
	}
	name := strings.TrimSpace(a[i])
	if name == "" {
		return "", &ArgError{Index: i, Reason: "empty name"}
	}
	return name, nil
}

func (a Args) suffix() string {
	if len(a) == 0 {
		return ""
	}
	return "," + strings.Join(a, ",")
}
