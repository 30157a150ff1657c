package batch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mrzor/gctrace-enrich/internal/config"
)

// Stdio names standard input as an input and standard output as an output.
const Stdio = "-"

var ErrStdinCombined = errors.New("standard input cannot be combined with other inputs")

// Job is one input stream and the place its enriched output goes.
type Job struct {
	Input string
	// Output is a file path, Stdio, or empty when the format exports
	// elsewhere (OTLP).
	Output string
}

// Extension returns the file extension written for format.
func Extension(format string) string {
	switch format {
	case config.FormatChrome:
		return ".trace.json"
	case config.FormatNDJSON:
		return ".ndjson"
	case config.FormatMsgpack:
		return ".msgpack"
	default:
		return ""
	}
}

// Plan assigns outputs to inputs.
//
// With no inputs, standard input is read. A single input goes to output, or
// to standard output when output is empty. Several inputs go to files named
// after them: inside the output directory when one is given, otherwise
// beside each input.
func Plan(inputs []string, format, output string) ([]Job, error) {
	if len(inputs) == 0 {
		inputs = []string{Stdio}
	}

	jobs := make([]Job, len(inputs))
	if format == config.FormatOTLP {
		for i, in := range inputs {
			jobs[i] = Job{Input: in}
		}
		return jobs, checkStdin(inputs)
	}

	if len(inputs) == 1 {
		out := output
		if out == "" {
			out = Stdio
		}
		return []Job{{Input: inputs[0], Output: out}}, nil
	}

	if err := checkStdin(inputs); err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(inputs))
	for i, in := range inputs {
		out := strings.TrimSuffix(in, filepath.Ext(in)) + Extension(format)
		if output != "" {
			out = filepath.Join(output, filepath.Base(out))
		}
		if prev, dup := seen[out]; dup {
			return nil, fmt.Errorf("inputs %s and %s both write %s", prev, in, out)
		}
		seen[out] = in
		jobs[i] = Job{Input: in, Output: out}
	}
	return jobs, nil
}

func checkStdin(inputs []string) error {
	if len(inputs) < 2 {
		return nil
	}
	for _, in := range inputs {
		if in == Stdio {
			return ErrStdinCombined
		}
	}
	return nil
}
