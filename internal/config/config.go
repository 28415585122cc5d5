// Package config loads and validates spacekeeperd's configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the current version of spacekeeperd, set at build time via
// ldflags. It is also the ExtensionVersion fed to the reconciliation
// engine's migration hook.
var Version = "dev"

// Config holds every configuration option spacekeeperd needs.
type Config struct {
	// Platform connection
	ChromePort  string `yaml:"chrome_port"`
	ExtensionID string `yaml:"extension_id"`

	// Storage
	DBPath string `yaml:"db_path"`

	// Reconciliation
	DebounceWindow time.Duration `yaml:"debounce_window"`
	HistoryLimit   int           `yaml:"history_limit"`

	// API / observability
	APIListenAddr     string `yaml:"api_listen_addr"`
	MetricsListenAddr string `yaml:"metrics_listen_addr"`
	LogLevel          string `yaml:"log_level"`
	LogFilePath       string `yaml:"log_file_path"`
}

// DefaultConfig returns spacekeeperd's default configuration.
func DefaultConfig() *Config {
	return &Config{
		ChromePort:  "9222",
		ExtensionID: "",

		DBPath: "./spacekeeper.db",

		DebounceWindow: time.Second,
		HistoryLimit:   200,

		APIListenAddr:     "127.0.0.1:7890",
		MetricsListenAddr: "127.0.0.1:7891",
		LogLevel:          "info",
		LogFilePath:       "",
	}
}

// LoadFromFile loads configuration from a YAML file, overriding defaults
// with whatever keys are present.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ChromePort == "" {
		return fmt.Errorf("chrome_port is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.DebounceWindow <= 0 {
		return fmt.Errorf("debounce_window must be positive")
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1")
	}
	if c.APIListenAddr == "" {
		return fmt.Errorf("api_listen_addr is required")
	}
	return nil
}

// Clone returns a deep-enough copy for the hot-reload watcher to diff
// against without racing the live config it's about to replace.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}
