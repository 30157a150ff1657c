// Package eventprocessor drives the enrichment engine over an ordered stream
// of GC trace events.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│      Source (eventstream.Reader)        │
//	└─────────────────┬───────────────────────┘
//	                  │  in stream order
//	                  ▼
//	┌─────────────────────────────────────────┐
//	│   eventprocessor                        │  ← Context ownership
//	│   - Opens/closes GC runs                │
//	│   - Opens/closes work packets per tid   │
//	│   - Records warnings, keeps going       │
//	└─────────┬───────────────────────────────┘
//	          │
//	          ├──→ GC Begin ────────→ replaced run context kept under "run"
//	          │
//	          ├──→ every event ─────→ enrich.Dispatcher
//	          │                      - Handler by exact name
//	          │                      - Mutates run / packet / output
//	          │
//	          ├──→ WORK End ────────→ packet args merged into output
//	          │
//	          ├──→ GC End ──────────→ run context merged into output
//	          │
//	          ├──→ Deriver ─────────→ attributes.Evaluator
//	          │
//	          └──→ Enriched ────────→ EnrichedHandler
//	                                - output writers / OTLP formatter
//
// Every Enriched carries a Kind so handlers can follow run and work packet
// boundaries without knowing the configured event names.
//
// Correlation depends on stream order only. Timestamps are carried through but
// never used to match events.
package eventprocessor
