// Package gcevent defines the trace events consumed by the enrichment engine.
//
// An Event is one line of a captured GC trace: a probe or span name, a phase
// (Begin, End or Instant), the emitting thread, a monotonic timestamp in
// nanoseconds, and the probe's positional arguments as raw strings.
//
// Argument parsing is positional and strict. Args.Int and Args.Name fail with
// an *ArgError wrapping ErrMalformedArguments when the argument is missing or
// has the wrong shape; callers never receive a defaulted value.
package gcevent
