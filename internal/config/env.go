package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds configuration from GCTRACE_* environment variables.
type EnvConfig struct {
	VM               string   `env:"GCTRACE_VM"`
	Format           string   `env:"GCTRACE_FORMAT"`
	Output           string   `env:"GCTRACE_OUTPUT"`
	RunEvent         string   `env:"GCTRACE_RUN_EVENT"`
	WorkEvents       []string `env:"GCTRACE_WORK_EVENTS" envSeparator:","`
	DisabledHandlers []string `env:"GCTRACE_DISABLED_HANDLERS" envSeparator:","`
	Attributes       string   `env:"GCTRACE_ATTRIBUTES"`
	TraceID          string   `env:"GCTRACE_TRACE_ID"`
	ParentID         string   `env:"GCTRACE_PARENT_ID"`
	Jobs             int      `env:"GCTRACE_JOBS"`
}

// ParseEnvConfig parses GCTRACE_* variables from the process environment.
func ParseEnvConfig() (*EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment config: %w", err)
	}
	return &cfg, nil
}
