package config

import (
	"fmt"
	"slices"
	"strings"
)

// Output formats.
const (
	FormatChrome  = "chrome"
	FormatNDJSON  = "ndjson"
	FormatMsgpack = "msgpack"
	FormatOTLP    = "otlp"
)

// Formats lists every supported output format.
var Formats = []string{FormatChrome, FormatNDJSON, FormatMsgpack, FormatOTLP}

// CustomAttribute is a derived attribute: a name and the expr expression
// that computes it.
type CustomAttribute struct {
	Name       string `yaml:"name" toml:"name"`
	Expression string `yaml:"expr" toml:"expr"`
}

// Config holds the resolved configuration of an enrichment run.
type Config struct {
	// VM is the tag written by plan_end_of_gc.
	VM string
	// Format is one of Formats.
	Format string
	// Output is a file for a single input, a directory for several, or
	// empty for stdout (single input) or files beside the inputs.
	Output string
	// RunEvent names the span delimiting a GC run.
	RunEvent string
	// WorkEvents name the spans delimiting work packets.
	WorkEvents []string
	// DisabledHandlers are handler names left out of the registry.
	DisabledHandlers []string
	// CustomAttributes are derived attributes evaluated per event.
	CustomAttributes []CustomAttribute
	// TraceID is an expression for the OTLP trace ID of each GC run.
	TraceID string
	// ParentID is an expression for the parent span ID of each GC run.
	ParentID string
	// Jobs bounds how many inputs are processed at once.
	Jobs int
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		VM:         "Ruby",
		Format:     FormatChrome,
		RunEvent:   "GC",
		WorkEvents: []string{"WORK"},
		Jobs:       1,
	}
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	if !slices.Contains(Formats, c.Format) {
		return fmt.Errorf("unknown format %q (expected one of: %s)", c.Format, strings.Join(Formats, ", "))
	}
	if strings.TrimSpace(c.VM) == "" {
		return fmt.Errorf("vm tag cannot be empty")
	}
	if strings.TrimSpace(c.RunEvent) == "" {
		return fmt.Errorf("run event cannot be empty")
	}
	if len(c.WorkEvents) == 0 {
		return fmt.Errorf("at least one work event is required")
	}
	if slices.Contains(c.WorkEvents, c.RunEvent) {
		return fmt.Errorf("%q cannot be both the run event and a work event", c.RunEvent)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	seen := make(map[string]bool, len(c.CustomAttributes))
	for _, attr := range c.CustomAttributes {
		if seen[attr.Name] {
			return fmt.Errorf("attribute %q defined twice", attr.Name)
		}
		seen[attr.Name] = true
	}
	return nil
}

// ParseAttribute parses one NAME=EXPR definition. The expression may itself
// contain '='.
func ParseAttribute(s string) (CustomAttribute, error) {
	name, expression, ok := strings.Cut(s, "=")
	if !ok {
		return CustomAttribute{}, fmt.Errorf("invalid attribute format %q: expected NAME=EXPR", s)
	}

	name = strings.TrimSpace(name)
	expression = strings.TrimSpace(expression)

	if name == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q: name cannot be empty", s)
	}
	if expression == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q: expression cannot be empty", s)
	}

	return CustomAttribute{Name: name, Expression: expression}, nil
}

// ParseAttributeString parses semicolon-separated NAME=EXPR definitions, as
// found in GCTRACE_ATTRIBUTES. Empty sections are ignored.
func ParseAttributeString(s string) ([]CustomAttribute, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var attrs []CustomAttribute
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		attr, err := ParseAttribute(part)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// ApplyFile overlays the values set in a configuration file.
func (c *Config) ApplyFile(f *FileConfig) {
	if f == nil {
		return
	}
	setString(&c.VM, f.VM)
	setString(&c.Format, f.Format)
	setString(&c.Output, f.Output)
	setString(&c.RunEvent, f.RunEvent)
	setString(&c.TraceID, f.TraceID)
	setString(&c.ParentID, f.ParentID)
	if len(f.WorkEvents) > 0 {
		c.WorkEvents = f.WorkEvents
	}
	if len(f.DisabledHandlers) > 0 {
		c.DisabledHandlers = f.DisabledHandlers
	}
	if len(f.Attributes) > 0 {
		c.CustomAttributes = f.Attributes
	}
	if f.Jobs > 0 {
		c.Jobs = f.Jobs
	}
}

// ApplyEnv overlays the values set in the environment.
func (c *Config) ApplyEnv(e *EnvConfig) error {
	if e == nil {
		return nil
	}
	setString(&c.VM, e.VM)
	setString(&c.Format, e.Format)
	setString(&c.Output, e.Output)
	setString(&c.RunEvent, e.RunEvent)
	setString(&c.TraceID, e.TraceID)
	setString(&c.ParentID, e.ParentID)
	if len(e.WorkEvents) > 0 {
		c.WorkEvents = e.WorkEvents
	}
	if len(e.DisabledHandlers) > 0 {
		c.DisabledHandlers = e.DisabledHandlers
	}
	if e.Jobs > 0 {
		c.Jobs = e.Jobs
	}

	attrs, err := ParseAttributeString(e.Attributes)
	if err != nil {
		return fmt.Errorf("GCTRACE_ATTRIBUTES: %w", err)
	}
	if len(attrs) > 0 {
		c.CustomAttributes = attrs
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
