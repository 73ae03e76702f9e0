// Package config holds all Fumo configuration, loaded from
// .fumo/config.yaml with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Fumo configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Loading orchestrator settings
	Loading LoadingConfig `yaml:"loading"`

	// User interface settings
	UI UIConfig `yaml:"ui"`

	// Run-history store
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// HistoryConfig configures the run-history store.
type HistoryConfig struct {
	// DatabasePath is the sqlite file, relative to the workspace.
	DatabasePath string `yaml:"database_path"`

	// Keep bounds how many runs are retained; older rows are pruned.
	Keep int `yaml:"keep"`
}

// LoggingConfig configures the categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
}

// Path returns the canonical config file location under a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".fumo", "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "fumo",
		Version: "1.0.0",
		Loading: DefaultLoadingConfig(),
		UI:      DefaultUIConfig(),
		History: HistoryConfig{
			DatabasePath: filepath.Join(".fumo", "history.db"),
			Keep:         200,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides always apply last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if theme := os.Getenv("FUMO_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if v := os.Getenv("FUMO_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
	if v := os.Getenv("FUMO_MIN_STEP_DISPLAY"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			c.Loading.MinStepDisplay = v
		}
	}
	if v := os.Getenv("FUMO_CHECK_TIMEOUT"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			c.Loading.DefaultCheckTimeout = v
		}
	}
	if path := os.Getenv("FUMO_DB"); path != "" {
		c.History.DatabasePath = path
	}
}
