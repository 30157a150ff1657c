// Package enrich turns the positional arguments of GC trace probes into
// structured statistics.
//
// Architecture:
//
//	┌──────────────────────────────┐
//	│   gcevent.Event              │
//	└──────────────┬───────────────┘
//	               │
//	               ▼
//	┌──────────────────────────────┐
//	│   Dispatcher                 │  ← exact name lookup in Registry
//	│   - phase filter             │
//	│   - arity check              │
//	│   - work packet requirement  │
//	└──────────────┬───────────────┘
//	               │
//	               ├──→ tag handlers ─────→ event output
//	               ├──→ count/diff/range ─→ work packet args
//	               ├──→ composite ────────→ event output
//	               └──→ init/final ───────→ run context (via correlate)
//
// Unknown names are not errors. A handler that fails leaves every context it
// was given untouched: argument checks run before the first write.
package enrich
