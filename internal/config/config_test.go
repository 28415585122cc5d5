package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ChromePort != "9222" {
		t.Errorf("expected ChromePort 9222, got %s", cfg.ChromePort)
	}
	if cfg.DBPath != "./spacekeeper.db" {
		t.Errorf("expected DBPath ./spacekeeper.db, got %s", cfg.DBPath)
	}
	if cfg.DebounceWindow != time.Second {
		t.Errorf("expected DebounceWindow 1s, got %v", cfg.DebounceWindow)
	}
	if cfg.HistoryLimit != 200 {
		t.Errorf("expected HistoryLimit 200, got %d", cfg.HistoryLimit)
	}
	if cfg.APIListenAddr != "127.0.0.1:7890" {
		t.Errorf("expected APIListenAddr 127.0.0.1:7890, got %s", cfg.APIListenAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel info, got %s", cfg.LogLevel)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
chrome_port: "9223"
extension_id: "abcdefgh"
db_path: "./test.db"
debounce_window: 500ms
history_limit: 50
api_listen_addr: "127.0.0.1:9999"
log_level: "debug"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.ChromePort != "9223" {
		t.Errorf("expected ChromePort 9223, got %s", cfg.ChromePort)
	}
	if cfg.ExtensionID != "abcdefgh" {
		t.Errorf("expected ExtensionID abcdefgh, got %s", cfg.ExtensionID)
	}
	if cfg.DebounceWindow != 500*time.Millisecond {
		t.Errorf("expected DebounceWindow 500ms, got %v", cfg.DebounceWindow)
	}
	if cfg.HistoryLimit != 50 {
		t.Errorf("expected HistoryLimit 50, got %d", cfg.HistoryLimit)
	}
	if cfg.MetricsListenAddr != "127.0.0.1:7891" {
		t.Errorf("expected unset MetricsListenAddr to keep default, got %s", cfg.MetricsListenAddr)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	if err := os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}, wantErr: false},
		{name: "empty chrome port", modify: func(c *Config) { c.ChromePort = "" }, wantErr: true},
		{name: "empty db path", modify: func(c *Config) { c.DBPath = "" }, wantErr: true},
		{name: "zero debounce window", modify: func(c *Config) { c.DebounceWindow = 0 }, wantErr: true},
		{name: "history limit zero", modify: func(c *Config) { c.HistoryLimit = 0 }, wantErr: true},
		{name: "empty api listen addr", modify: func(c *Config) { c.APIListenAddr = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
