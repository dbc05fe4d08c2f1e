package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/funproject/fun/internal/log"
)

// EnvPrefix is prepended to environment overrides, e.g. FUN_DASHBOARD_TITLE.
const EnvPrefix = "FUN"

// LocalConfigPath is checked before the user config directory.
const LocalConfigPath = ".fun/config.yaml"

// SetDefaults registers every default value on v so environment variables
// and partial files layer over them.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("version", d.Version)
	v.SetDefault("dashboard.title", d.Dashboard.Title)
	v.SetDefault("dashboard.refresh_interval", d.Dashboard.RefreshInterval)
	v.SetDefault("dashboard.column_width", d.Dashboard.ColumnWidth)
	v.SetDefault("dashboard.show_system", d.Dashboard.ShowSystem)
	v.SetDefault("plugins.paths", d.Plugins.Paths)
	v.SetDefault("plugins.watch", d.Plugins.Watch)
	v.SetDefault("plugins.watch_debounce", d.Plugins.WatchDebounce)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
}

// Load reads configuration into a Config.
//
// Config lookup order:
//  1. cfgFile, when given
//  2. .fun/config.yaml (current directory)
//  3. ~/.config/fun/config.yaml (user config)
//
// A missing config file is not an error; defaults and FUN_* environment
// variables still apply. Returns the file used, or "" when none was read.
func Load(v *viper.Viper, cfgFile string) (Config, string, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	case fileExists(LocalConfigPath):
		v.SetConfigFile(LocalConfigPath)
	default:
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "fun"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	used := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf("reading config: %w", err)
		}
		log.Debug(log.CatConfig, "No config file found, using defaults")
	} else {
		used = v.ConfigFileUsed()
		log.Debug(log.CatConfig, "Loaded config", "path", used)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, used, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, used, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, used, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
