// Package attributes provides expression evaluation for derived attributes,
// trace IDs, and parent span IDs.
//
// Expressions use the expr language. Derived attributes are evaluated against
// each enriched event; trace and parent IDs are evaluated once per GC run.
//
// Three evaluators:
//   - Evaluator: Evaluates derived attribute expressions
//   - TraceIDEvaluator: Evaluates and validates trace ID expressions (32 hex chars)
//   - ParentIDEvaluator: Evaluates and validates parent span ID expressions (16 hex chars)
//
// Invalid trace IDs are hashed with SHA-256 to produce valid IDs.
// Invalid parent IDs result in a null parent (zero span ID).
package attributes
