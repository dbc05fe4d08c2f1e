// Package config provides configuration types, defaults and validation for fun.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/funproject/fun/internal/log"
)

// Config holds all configuration options for fun.
type Config struct {
	Version   string          `mapstructure:"version"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Plugins   PluginsConfig   `mapstructure:"plugins"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	// Flags are feature switches; see the flags package for known names.
	Flags map[string]bool `mapstructure:"flags"`
}

// DashboardConfig controls the terminal dashboard.
type DashboardConfig struct {
	Title           string        `mapstructure:"title"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	ColumnWidth     int           `mapstructure:"column_width"`
	// ShowSystem adds the built-in "System" panel with loader statistics.
	ShowSystem bool `mapstructure:"show_system"`
}

// PluginsConfig controls where plugin descriptors are discovered.
type PluginsConfig struct {
	// Paths are extra directories scanned for plugin.yaml files, in addition
	// to the built-in plugins compiled into the binary.
	Paths []string `mapstructure:"paths"`
	// Watch registers descriptors that appear in Paths after startup.
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

// LogConfig controls the log destination.
type LogConfig struct {
	// File is the log file path. Empty means stderr.
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/fun/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultTracesFilePath returns ~/.config/fun/traces/traces.jsonl, or an
// empty string if the home directory is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "fun", "traces", "traces.jsonl")
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Version: "1.0.0",
		Dashboard: DashboardConfig{
			Title:           "FunProject",
			RefreshInterval: time.Second,
			ColumnWidth:     38,
			ShowSystem:      true,
		},
		Plugins: PluginsConfig{
			Watch:         false,
			WatchDebounce: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     DefaultTracesFilePath(),
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Validate checks the whole configuration.
func Validate(cfg Config) error {
	if err := ValidateDashboard(cfg.Dashboard); err != nil {
		return err
	}
	if err := ValidatePlugins(cfg.Plugins); err != nil {
		return err
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateDashboard checks dashboard configuration for errors.
func ValidateDashboard(d DashboardConfig) error {
	if d.RefreshInterval <= 0 {
		return fmt.Errorf("dashboard.refresh_interval must be positive, got %s", d.RefreshInterval)
	}
	if d.ColumnWidth < 10 {
		return fmt.Errorf("dashboard.column_width must be at least 10, got %d", d.ColumnWidth)
	}
	return nil
}

// ValidatePlugins checks plugin discovery configuration for errors.
func ValidatePlugins(p PluginsConfig) error {
	for i, path := range p.Paths {
		if path == "" {
			return fmt.Errorf("plugins.paths[%d] is empty", i)
		}
	}
	if p.Watch && p.WatchDebounce < 0 {
		return fmt.Errorf("plugins.watch_debounce must not be negative, got %s", p.WatchDebounce)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# fun configuration

# Version shown in the dashboard header
version: "1.0.0"

dashboard:
  title: FunProject
  # Time between frames
  refresh_interval: 1s
  # Width of each dashboard column in characters
  column_width: 38
  # Show the built-in System panel (loaded plugins, shortcuts, last action)
  show_system: true

plugins:
  # Extra directories scanned for plugin.yaml descriptors
  paths: []
  # Pick up descriptors added to those directories while running
  watch: false
  watch_debounce: 500ms

log:
  # Empty writes to stderr
  file: ""
  # debug, info, warn, error
  level: info

tracing:
  enabled: false
  # none, file, stdout, otlp
  exporter: file
  file_path: ""
  otlp_endpoint: localhost:4317
  sample_rate: 1.0

flags:
  # Allow "lua:<script>" plugin types in descriptors
  lua-plugins: true
  # A later descriptor may take over a key chord that is already bound
  shortcut-override: true
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
