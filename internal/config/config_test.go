package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.Equal(t, "FunProject", cfg.Dashboard.Title)
	require.Equal(t, time.Second, cfg.Dashboard.RefreshInterval)
	require.Equal(t, 38, cfg.Dashboard.ColumnWidth)
	require.True(t, cfg.Dashboard.ShowSystem)
	require.Equal(t, "info", cfg.Log.Level)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "file", cfg.Tracing.Exporter)
	require.Equal(t, 1.0, cfg.Tracing.SampleRate)
	require.NoError(t, Validate(cfg))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero refresh interval",
			mutate:  func(c *Config) { c.Dashboard.RefreshInterval = 0 },
			wantErr: "dashboard.refresh_interval must be positive",
		},
		{
			name:    "narrow columns",
			mutate:  func(c *Config) { c.Dashboard.ColumnWidth = 4 },
			wantErr: "dashboard.column_width must be at least 10",
		},
		{
			name:    "empty plugin path",
			mutate:  func(c *Config) { c.Plugins.Paths = []string{"plugins", ""} },
			wantErr: "plugins.paths[1] is empty",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
		{
			name:    "sample rate out of range",
			mutate:  func(c *Config) { c.Tracing.SampleRate = 1.5 },
			wantErr: "tracing.sample_rate must be between 0.0 and 1.0",
		},
		{
			name:    "unknown exporter",
			mutate:  func(c *Config) { c.Tracing.Exporter = "jaeger" },
			wantErr: "tracing.exporter must be",
		},
		{
			name: "file exporter without path",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.FilePath = ""
			},
			wantErr: "tracing.file_path is required",
		},
		{
			name: "otlp exporter without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "otlp"
				c.Tracing.OTLPEndpoint = ""
			},
			wantErr: "tracing.otlp_endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Tracing.FilePath = "/tmp/traces.jsonl"
			tt.mutate(&cfg)

			err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "2.1.0"
dashboard:
  title: Desk
  refresh_interval: 250ms
plugins:
  paths: [./plugins]
  watch: true
`), 0o600))

	cfg, used, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, path, used)
	require.Equal(t, "2.1.0", cfg.Version)
	require.Equal(t, "Desk", cfg.Dashboard.Title)
	require.Equal(t, 250*time.Millisecond, cfg.Dashboard.RefreshInterval)
	require.Equal(t, 38, cfg.Dashboard.ColumnWidth, "unset keys keep defaults")
	require.Equal(t, []string{"./plugins"}, cfg.Plugins.Paths)
	require.True(t, cfg.Plugins.Watch)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dashboard:\n  title: FromFile\n"), 0o600))
	t.Setenv("FUN_DASHBOARD_TITLE", "FromEnv")

	cfg, _, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "FromEnv", cfg.Dashboard.Title)
}

func TestLoad_InvalidFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dashboard:\n  column_width: 2\n"), 0o600))

	_, _, err := Load(viper.New(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "column_width")
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWriteDefaultConfig_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	cfg, _, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, Defaults().Dashboard, cfg.Dashboard)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, map[string]bool{"lua-plugins": true, "shortcut-override": true}, cfg.Flags)
}
