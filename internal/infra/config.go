package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the engine's runtime configuration, loaded from a YAML file.
// User settings (whitelist, rules) live in the separate JSON settings
// document; this file only carries paths and intervals.
type AppConfig struct {
	SettingsPath string
	DatabasePath string
	RegistryDir  string
	LogPath      string

	RuleEvalInterval       time.Duration
	SettingsReloadInterval time.Duration
	PersistInterval        time.Duration
	HeartbeatInterval      time.Duration
}

// DefaultAppConfig returns configuration rooted under the user config dir.
func DefaultAppConfig() AppConfig {
	base := "."
	if dir, err := os.UserConfigDir(); err == nil {
		base = filepath.Join(dir, "focusengine")
	}
	return AppConfig{
		SettingsPath:           filepath.Join(base, "settings.json"),
		DatabasePath:           filepath.Join(base, "history.db"),
		RegistryDir:            base,
		LogPath:                filepath.Join(base, "focusengine.log"),
		RuleEvalInterval:       20 * time.Second,
		SettingsReloadInterval: 5 * time.Second,
		PersistInterval:        30 * time.Second,
		HeartbeatInterval:      30 * time.Second,
	}
}

// appConfigFile is the on-disk YAML shape. Intervals are duration strings
// ("20s", "1m") and get parsed onto AppConfig during load.
type appConfigFile struct {
	SettingsPath string `yaml:"settings_path"`
	DatabasePath string `yaml:"database_path"`
	RegistryDir  string `yaml:"registry_dir"`
	LogPath      string `yaml:"log_path"`

	RuleEvalInterval       string `yaml:"rule_eval_interval"`
	SettingsReloadInterval string `yaml:"settings_reload_interval"`
	PersistInterval        string `yaml:"persist_interval"`
	HeartbeatInterval      string `yaml:"heartbeat_interval"`
}

// LoadAppConfig reads a YAML config file, overlaying it on the defaults.
// An empty path returns the defaults; a missing file at an explicit path
// is an error.
func LoadAppConfig(path string) (AppConfig, error) {
	config := DefaultAppConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config: %w", err)
	}
	var file appConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return config, fmt.Errorf("failed to parse config: %w", err)
	}

	if file.SettingsPath != "" {
		config.SettingsPath = file.SettingsPath
	}
	if file.DatabasePath != "" {
		config.DatabasePath = file.DatabasePath
	}
	if file.RegistryDir != "" {
		config.RegistryDir = file.RegistryDir
	}
	if file.LogPath != "" {
		config.LogPath = file.LogPath
	}
	for _, field := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"rule_eval_interval", file.RuleEvalInterval, &config.RuleEvalInterval},
		{"settings_reload_interval", file.SettingsReloadInterval, &config.SettingsReloadInterval},
		{"persist_interval", file.PersistInterval, &config.PersistInterval},
		{"heartbeat_interval", file.HeartbeatInterval, &config.HeartbeatInterval},
	} {
		if field.raw == "" {
			continue
		}
		d, err := time.ParseDuration(field.raw)
		if err != nil {
			return config, fmt.Errorf("invalid %s: %w", field.name, err)
		}
		*field.dst = d
	}

	if err := config.validate(); err != nil {
		return config, err
	}
	return config, nil
}

func (c *AppConfig) validate() error {
	// Rule evaluation runs on a 10-30s cadence.
	if c.RuleEvalInterval < 10*time.Second || c.RuleEvalInterval > 30*time.Second {
		return fmt.Errorf("rule_eval_interval %s outside 10s-30s", c.RuleEvalInterval)
	}
	if c.SettingsReloadInterval <= 0 {
		return fmt.Errorf("settings_reload_interval must be positive")
	}
	if c.PersistInterval <= 0 {
		return fmt.Errorf("persist_interval must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	return nil
}

// EnsureDirs creates the directories the configured paths live in.
func (c *AppConfig) EnsureDirs() error {
	for _, p := range []string{c.SettingsPath, c.DatabasePath, c.LogPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
	}
	return os.MkdirAll(c.RegistryDir, 0755)
}
