package attributes

import (
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/mrzor/gctrace-enrich/internal/scope"
)

func TestTraceIDEvaluator_ValidHex(t *testing.T) {
	evaluator, err := NewTraceIDEvaluator(`env["TRACE_ID"]`)
	if err != nil {
		t.Fatalf("NewTraceIDEvaluator() error = %v", err)
	}

	env := RunEnv{
		Environ: map[string]string{
			"TRACE_ID": "0123456789abcdef0123456789abcdef",
		},
	}

	traceID, warnings, err := evaluator.EvaluateAndValidate(env)
	if err != nil {
		t.Fatalf("EvaluateAndValidate() error = %v", err)
	}

	if len(warnings) != 0 {
		t.Errorf("Expected no warnings for valid trace ID, got %d", len(warnings))
	}

	expectedTraceID, err := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("trace.TraceIDFromHex() error = %v", err)
	}
	if traceID != expectedTraceID {
		t.Errorf("traceID = %v, want %v", traceID, expectedTraceID)
	}
}

func TestTraceIDEvaluator_HashesPerRun(t *testing.T) {
	evaluator, err := NewTraceIDEvaluator(`source + "#" + string(seq)`)
	if err != nil {
		t.Fatalf("NewTraceIDEvaluator() error = %v", err)
	}

	first, warnings, err := evaluator.EvaluateAndValidate(RunEnv{Source: "bench.log", Run: scope.NewRun(1, 1, 0)})
	if err != nil {
		t.Fatalf("EvaluateAndValidate() error = %v", err)
	}
	second, _, err := evaluator.EvaluateAndValidate(RunEnv{Source: "bench.log", Run: scope.NewRun(2, 1, 0)})
	if err != nil {
		t.Fatalf("EvaluateAndValidate() error = %v", err)
	}
	again, _, _ := evaluator.EvaluateAndValidate(RunEnv{Source: "bench.log", Run: scope.NewRun(1, 1, 0)})

	if first == (trace.TraceID{}) {
		t.Error("Expected non-zero trace ID (hashed)")
	}
	if first == second {
		t.Error("different runs should get different trace IDs")
	}
	if first != again {
		t.Error("the same run should always hash to the same trace ID")
	}

	foundResult := false
	foundWarning := false
	for _, w := range warnings {
		if w.Key == "_trace_id_expr_result" {
			foundResult = true
			if w.Value.AsString() != "bench.log#1" {
				t.Errorf("_trace_id_expr_result = %q, want bench.log#1", w.Value.AsString())
			}
		}
		if w.Key == "_trace_id_invalid_warning" {
			foundWarning = true
		}
	}
	if !foundResult {
		t.Error("Missing _trace_id_expr_result warning")
	}
	if !foundWarning {
		t.Error("Missing _trace_id_invalid_warning warning")
	}
}

func TestTraceIDEvaluator_NoExpression(t *testing.T) {
	evaluator, err := NewTraceIDEvaluator("")
	if err != nil {
		t.Fatalf("NewTraceIDEvaluator(\"\") error = %v", err)
	}

	traceID, warnings, err := evaluator.EvaluateAndValidate(RunEnv{})
	if err != nil {
		t.Fatalf("EvaluateAndValidate() error = %v", err)
	}

	if traceID != (trace.TraceID{}) {
		t.Error("Expected zero trace ID when no expression is configured")
	}
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %d", len(warnings))
	}
}

func TestTraceIDEvaluator_InvalidExpression(t *testing.T) {
	if _, err := NewTraceIDEvaluator(`seq +`); err == nil {
		t.Error("Expected compile error")
	}
}

func TestParentIDEvaluator_ValidHex(t *testing.T) {
	evaluator, err := NewParentIDEvaluator(`env["PARENT_SPAN_ID"]`)
	if err != nil {
		t.Fatalf("NewParentIDEvaluator() error = %v", err)
	}

	env := RunEnv{
		Environ: map[string]string{
			"PARENT_SPAN_ID": "0123456789abcdef",
		},
	}

	spanID, warnings, err := evaluator.EvaluateAndValidate(env)
	if err != nil {
		t.Fatalf("EvaluateAndValidate() error = %v", err)
	}

	if len(warnings) != 0 {
		t.Errorf("Expected no warnings for valid span ID, got %d", len(warnings))
	}

	expectedSpanID, err := trace.SpanIDFromHex("0123456789abcdef")
	if err != nil {
		t.Fatalf("trace.SpanIDFromHex() error = %v", err)
	}
	if spanID != expectedSpanID {
		t.Errorf("spanID = %v, want %v", spanID, expectedSpanID)
	}
}

func TestParentIDEvaluator_InvalidHex(t *testing.T) {
	evaluator, err := NewParentIDEvaluator(`env["INVALID_PARENT"]`)
	if err != nil {
		t.Fatalf("NewParentIDEvaluator() error = %v", err)
	}

	env := RunEnv{
		Environ: map[string]string{
			"INVALID_PARENT": "notvalid",
		},
	}

	spanID, warnings, err := evaluator.EvaluateAndValidate(env)
	if err != nil {
		t.Fatalf("EvaluateAndValidate() error = %v", err)
	}

	if spanID != (trace.SpanID{}) {
		t.Error("Expected zero span ID for invalid parent")
	}
	if len(warnings) != 2 {
		t.Errorf("Expected 2 warnings for invalid parent ID, got %d", len(warnings))
	}
}

func TestParentIDEvaluator_NoExpression(t *testing.T) {
	evaluator, err := NewParentIDEvaluator("")
	if err != nil {
		t.Fatalf("NewParentIDEvaluator(\"\") error = %v", err)
	}

	spanID, warnings, err := evaluator.EvaluateAndValidate(RunEnv{})
	if err != nil {
		t.Fatalf("EvaluateAndValidate() error = %v", err)
	}

	if spanID != (trace.SpanID{}) {
		t.Error("Expected zero span ID when no expression is configured")
	}
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %d", len(warnings))
	}
}
