package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk configuration, in YAML or TOML.
type FileConfig struct {
	VM               string            `yaml:"vm" toml:"vm"`
	Format           string            `yaml:"format" toml:"format"`
	Output           string            `yaml:"output" toml:"output"`
	RunEvent         string            `yaml:"run_event" toml:"run_event"`
	WorkEvents       []string          `yaml:"work_events" toml:"work_events"`
	DisabledHandlers []string          `yaml:"disabled_handlers" toml:"disabled_handlers"`
	Attributes       []CustomAttribute `yaml:"attributes" toml:"attributes"`
	TraceID          string            `yaml:"trace_id" toml:"trace_id"`
	ParentID         string            `yaml:"parent_id" toml:"parent_id"`
	Jobs             int               `yaml:"jobs" toml:"jobs"`
}

// LoadFile reads a configuration file. The syntax is picked by extension:
// .yaml and .yml for YAML, .toml for TOML.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := DecodeFile(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// DecodeFile parses configuration data of the syntax named by ext.
// Unknown keys are rejected.
func DecodeFile(data []byte, ext string) (*FileConfig, error) {
	var cfg FileConfig

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".toml":
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q (expected .yaml, .yml or .toml)", ext)
	}

	for i, attr := range cfg.Attributes {
		if strings.TrimSpace(attr.Name) == "" {
			return nil, fmt.Errorf("attributes[%d]: name cannot be empty", i)
		}
		if strings.TrimSpace(attr.Expression) == "" {
			return nil, fmt.Errorf("attribute %q: expression cannot be empty", attr.Name)
		}
	}
	return &cfg, nil
}
