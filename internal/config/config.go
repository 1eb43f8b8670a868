// Package config loads and validates tool configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Config is the top-level configuration struct for changegate.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Policy    PolicyConfig    `mapstructure:"policy"`
	Workflows WorkflowsConfig `mapstructure:"workflows"`
	Timeout   string          `mapstructure:"timeout"`
	Output    OutputConfig    `mapstructure:"output"`
	Serve     ServeConfig     `mapstructure:"serve"`
	Log       LogConfig       `mapstructure:"log"`
}

// PolicyConfig locates the relevance policy.
type PolicyConfig struct {
	File     string   `mapstructure:"file"`
	Patterns []string `mapstructure:"patterns"`
}

// WorkflowsConfig names the workflow variants a decision selects from.
type WorkflowsConfig struct {
	Run  string `mapstructure:"run"`
	Skip string `mapstructure:"skip"`
}

// OutputConfig controls the decision document output.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// ServeConfig holds the HTTP decision service settings.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Defaults applied when neither file, env, nor flags set a value.
const (
	DefaultTimeout     = "30s"
	DefaultFormat      = "json"
	DefaultRunVariant  = "full"
	DefaultSkipVariant = "skip"
	DefaultServeAddr   = ":8473"
	DefaultLogLevel    = "info"
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidFormat indicates an unsupported output format.
	ErrInvalidFormat = errors.New("output format must be json or yaml")
	// ErrInvalidTimeout indicates an unparseable timeout value.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrEmptyWorkflow indicates a workflow variant with an empty name.
	ErrEmptyWorkflow = errors.New("workflow variant names must be non-empty")
	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("log level must be debug, info, warn, or error")
)

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Output.Format != "json" && c.Output.Format != "yaml" {
		return fmt.Errorf("%w: got %q", ErrInvalidFormat, c.Output.Format)
	}

	_, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimeout, c.Timeout)
	}

	if c.Workflows.Run == "" || c.Workflows.Skip == "" {
		return ErrEmptyWorkflow
	}

	_, err = parseLogLevel(c.Log.Level)
	if err != nil {
		return err
	}

	return nil
}

// TimeoutDuration returns the parsed run timeout. Validate must have
// passed.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}

	return d
}

// LogLevel returns the parsed slog level. Validate must have passed.
func (c *Config) LogLevel() slog.Level {
	level, err := parseLogLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}

	return level
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: got %q", ErrInvalidLogLevel, s)
	}
}
