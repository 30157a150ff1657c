package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const capture = `Attaching 9 probes...
GC,B,1,100
WORK,B,1,200,PinPPPs
pin_ppps_prepare,i,1,250,3,4
WORK,E,1,300
GC,E,1,400
`

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(BuildInfo{Version: "1.0.0", Commit: "abc123", Date: "2026-01-01"})
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func firstRecord(t *testing.T, out string) map[string]any {
	t.Helper()
	line, _, _ := strings.Cut(out, "\n")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec), out)
	return rec
}

func TestVersion(t *testing.T) {
	res := execute(t, "", "version")
	require.NoError(t, res.err)
	assert.Equal(t, "gctrace-enrich 1.0.0 (commit: abc123, built: 2026-01-01)\n", res.stdout)
}

func TestHandlers(t *testing.T) {
	res := execute(t, "", "handlers")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "EVENT")
	assert.Contains(t, res.stdout, "pin_ppps_prepare")
	assert.Contains(t, res.stdout, "weak_st_par_final")
}

func TestHandlers_Disable(t *testing.T) {
	res := execute(t, "", "handlers", "--disable", "pin_ppps_prepare")
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, "pin_ppps_prepare")

	res = execute(t, "", "handlers", "--disable", "no_such_probe")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "no_such_probe")
}

func TestEnrich_StdinToStdout(t *testing.T) {
	res := execute(t, capture, "enrich", "--format", "ndjson")
	require.NoError(t, res.err)

	assert.Equal(t, 5, strings.Count(res.stdout, "\n"))
	assert.Equal(t, "GC", firstRecord(t, res.stdout)["name"])
	assert.Contains(t, res.stdout, `"total":7`)
	assert.Contains(t, res.stderr, "<stdin>: 5 events")
}

func TestEnrich_Quiet(t *testing.T) {
	res := execute(t, capture, "enrich", "-f", "ndjson", "-q")
	require.NoError(t, res.err)
	assert.Empty(t, res.stderr)
}

func TestEnrich_FlagOverridesEnv(t *testing.T) {
	t.Setenv("GCTRACE_FORMAT", "msgpack")

	res := execute(t, capture, "enrich", "--format", "ndjson", "-q")
	require.NoError(t, res.err)
	assert.Equal(t, "GC", firstRecord(t, res.stdout)["name"])
}

func TestEnrich_EnvApplies(t *testing.T) {
	t.Setenv("GCTRACE_FORMAT", "ndjson")
	t.Setenv("GCTRACE_ATTRIBUTES", "run_seq=seq")

	res := execute(t, capture, "enrich", "-q")
	require.NoError(t, res.err)
	assert.EqualValues(t, 1, firstRecord(t, res.stdout)["args"].(map[string]any)["run_seq"])
}

func TestEnrich_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gctrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: ndjson\nattributes:\n  - name: host\n    expr: '\"ci\"'\n"), 0o600))

	res := execute(t, capture, "enrich", "--config", path, "-q")
	require.NoError(t, res.err)
	assert.Equal(t, "ci", firstRecord(t, res.stdout)["args"].(map[string]any)["host"])
}

func TestEnrich_AttributeFlagReplacesEnv(t *testing.T) {
	t.Setenv("GCTRACE_ATTRIBUTES", "from_env=1")

	res := execute(t, capture, "enrich", "-f", "ndjson", "-q", "-a", "from_flag=2")
	require.NoError(t, res.err)

	args := firstRecord(t, res.stdout)["args"].(map[string]any)
	assert.NotContains(t, args, "from_env")
	assert.EqualValues(t, 2, args["from_flag"])
}

func TestEnrich_Files(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "gc.log")
	out := filepath.Join(dir, "gc.json")
	require.NoError(t, os.WriteFile(in, []byte(capture), 0o600))

	res := execute(t, "", "enrich", in, "-o", out)
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "gc.log: 5 events")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var trace struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(data, &trace))
	assert.Len(t, trace.TraceEvents, 5)
}

func TestEnrich_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"unknown format", []string{"--format", "svg"}, "unknown format"},
		{"bad attribute", []string{"-a", "nonsense"}, "NAME=EXPR"},
		{"zero jobs", []string{"--jobs", "0"}, "jobs must be at least 1"},
		{"missing config", []string{"--config", "/nonexistent.yaml"}, "reading config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, capture, append([]string{"enrich"}, tt.args...)...)
			require.Error(t, res.err)
			assert.Contains(t, res.err.Error(), tt.msg)
		})
	}
}

func TestEnrich_BadBootTime(t *testing.T) {
	f := &enrichFlags{bootTime: "yesterday"}
	_, err := f.converter()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--boot-time")
}
