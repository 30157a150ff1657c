package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mrzor/gctrace-enrich/internal/config"
	"github.com/mrzor/gctrace-enrich/internal/eventstream"
	"github.com/mrzor/gctrace-enrich/internal/timesync"
)

const capture = `Attaching 9 probes...
GC,B,1,100
WORK,B,1,200,PinPPPs
pin_ppps_prepare,i,1,250,3,4
WORK,E,1,300
GC,E,1,400
`

func TestPlan(t *testing.T) {
	tests := []struct {
		name    string
		inputs  []string
		format  string
		output  string
		want    []Job
		wantErr string
	}{
		{
			name:   "stdin to stdout",
			format: config.FormatChrome,
			want:   []Job{{Input: "-", Output: "-"}},
		},
		{
			name:   "single file to stdout",
			inputs: []string{"gc.log"},
			format: config.FormatNDJSON,
			want:   []Job{{Input: "gc.log", Output: "-"}},
		},
		{
			name:   "single file to file",
			inputs: []string{"gc.log"},
			format: config.FormatNDJSON,
			output: "out.json",
			want:   []Job{{Input: "gc.log", Output: "out.json"}},
		},
		{
			name:   "several files beside inputs",
			inputs: []string{"a/gc.log", "b/gc.log"},
			format: config.FormatChrome,
			want: []Job{
				{Input: "a/gc.log", Output: "a/gc.trace.json"},
				{Input: "b/gc.log", Output: "b/gc.trace.json"},
			},
		},
		{
			name:   "several files into directory",
			inputs: []string{"run1.log", "run2.log"},
			format: config.FormatMsgpack,
			output: "out",
			want: []Job{
				{Input: "run1.log", Output: filepath.Join("out", "run1.msgpack")},
				{Input: "run2.log", Output: filepath.Join("out", "run2.msgpack")},
			},
		},
		{
			name:    "colliding outputs",
			inputs:  []string{"a/gc.log", "b/gc.log"},
			format:  config.FormatChrome,
			output:  "out",
			wantErr: "both write",
		},
		{
			name:    "stdin among files",
			inputs:  []string{"gc.log", "-"},
			format:  config.FormatChrome,
			wantErr: "standard input",
		},
		{
			name:   "otlp has no output files",
			inputs: []string{"a.log", "b.log"},
			format: config.FormatOTLP,
			output: "ignored",
			want:   []Job{{Input: "a.log"}, {Input: "b.log"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := Plan(tt.inputs, tt.format, tt.output)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, jobs)
		})
	}
}

func testConfig(format string, jobs int) *config.Config {
	cfg := config.Default()
	cfg.Format = format
	cfg.Jobs = jobs
	return cfg
}

func TestRun_Stdin(t *testing.T) {
	var stdout bytes.Buffer
	jobs, err := Plan(nil, config.FormatNDJSON, "")
	require.NoError(t, err)

	results, err := Run(context.Background(), jobs, Options{
		Config: testConfig(config.FormatNDJSON, 1),
		Stdin:  strings.NewReader(capture),
		Stdout: &stdout,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 5, results[0].Stats.Events)
	assert.Equal(t, 1, results[0].Skipped)
	assert.Equal(t, "<stdin>", results[0].Summary().Source)
	assert.Equal(t, 5, strings.Count(stdout.String(), "\n"))
	assert.Contains(t, stdout.String(), `"total":7`)
}

func TestRun_ParallelFiles(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.log", "b.log", "c.log"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(capture), 0o600))
		inputs = append(inputs, path)
	}

	jobs, err := Plan(inputs, config.FormatChrome, "")
	require.NoError(t, err)

	results, err := Run(context.Background(), jobs, Options{Config: testConfig(config.FormatChrome, 2)})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, res := range results {
		assert.Equal(t, inputs[i], res.Job.Input)
		assert.Equal(t, 1, res.Stats.Runs)
		assert.Empty(t, res.Warnings)

		data, err := os.ReadFile(res.Job.Output)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"traceEvents"`)
	}
}

func TestRun_ParseErrorStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.log")
	require.NoError(t, os.WriteFile(path, []byte("GC,B,1,100\nGC,X,1,200\n"), 0o600))

	var stdout bytes.Buffer
	_, err := Run(context.Background(), []Job{{Input: path, Output: Stdio}}, Options{
		Config: testConfig(config.FormatNDJSON, 1),
		Stdout: &stdout,
	})
	require.Error(t, err)

	var perr *eventstream.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
	assert.Contains(t, err.Error(), path)
}

func TestRun_MissingInput(t *testing.T) {
	_, err := Run(context.Background(), []Job{{Input: "/nonexistent/gc.log", Output: Stdio}}, Options{
		Config: testConfig(config.FormatNDJSON, 1),
		Stdout: &bytes.Buffer{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening input")
}

func TestRun_InvalidAttribute(t *testing.T) {
	cfg := testConfig(config.FormatNDJSON, 1)
	cfg.CustomAttributes = []config.CustomAttribute{{Name: "bad", Expression: "1 +"}}

	_, err := Run(context.Background(), []Job{{Input: Stdio, Output: Stdio}}, Options{Config: cfg})
	require.Error(t, err)
}

func TestRun_DerivedAttributes(t *testing.T) {
	cfg := testConfig(config.FormatNDJSON, 1)
	cfg.CustomAttributes = []config.CustomAttribute{{Name: "run_seq", Expression: "seq"}}

	var stdout bytes.Buffer
	_, err := Run(context.Background(), []Job{{Input: Stdio, Output: Stdio}}, Options{
		Config: cfg,
		Stdin:  strings.NewReader(capture),
		Stdout: &stdout,
	})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), `"run_seq":1`)
}

func TestRun_NonFiniteDerivedAttributeIsDropped(t *testing.T) {
	for _, format := range []string{config.FormatChrome, config.FormatNDJSON, config.FormatMsgpack} {
		t.Run(format, func(t *testing.T) {
			cfg := testConfig(format, 1)
			cfg.CustomAttributes = []config.CustomAttribute{
				{Name: "ratio", Expression: "ts / (ts - ts)"},
				{Name: "run_seq", Expression: "seq"},
			}

			var stdout bytes.Buffer
			results, err := Run(context.Background(), []Job{{Input: Stdio, Output: Stdio}}, Options{
				Config: cfg,
				Stdin:  strings.NewReader(capture),
				Stdout: &stdout,
			})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, 5, results[0].Stats.Events)
			assert.NotContains(t, stdout.String(), "ratio")
		})
	}
}

func TestRun_OTLP(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	_, err := Run(context.Background(), []Job{{Input: Stdio}}, Options{
		Config:    testConfig(config.FormatOTLP, 1),
		Tracer:    tp.Tracer("test"),
		Converter: timesync.NewConverterAt(time.Unix(0, 0)),
		Stdin:     strings.NewReader(capture),
	})
	require.NoError(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"GC", "PinPPPs"}, names)
}

func TestRun_OTLPRequiresTracer(t *testing.T) {
	_, err := Run(context.Background(), []Job{{Input: Stdio}}, Options{
		Config: testConfig(config.FormatOTLP, 1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a tracer")
}
