package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_HotReloadsDebounceWindow(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	initialContent := "chrome_port: \"9222\"\ndb_path: \"./a.db\"\napi_listen_addr: \"127.0.0.1:7890\"\ndebounce_window: 1s\n"
	if err := os.WriteFile(path, []byte(initialContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	initial, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	w := NewWatcher(path, initial, nil)
	w.debounceDelay = 20 * time.Millisecond

	changed := make(chan *Config, 1)
	w.OnChange(func(c *Config) { changed <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond) // let the fsnotify watch establish

	newContent := "chrome_port: \"9222\"\ndb_path: \"./a.db\"\napi_listen_addr: \"127.0.0.1:7890\"\ndebounce_window: 5s\n"
	if err := os.WriteFile(path, []byte(newContent), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.DebounceWindow != 5*time.Second {
			t.Errorf("expected DebounceWindow 5s after reload, got %v", cfg.DebounceWindow)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}

	if w.Current().DebounceWindow != 5*time.Second {
		t.Errorf("expected Current().DebounceWindow 5s, got %v", w.Current().DebounceWindow)
	}
}
