package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Logger is the minimal structured-logging surface the watcher needs.
type Logger interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// ChangeCallback is invoked with the reloaded config after a debounced
// file-change settles.
type ChangeCallback func(*Config)

// Watcher hot-reloads the subset of Config that's safe to change without a
// restart (DebounceWindow, HistoryLimit, LogLevel), logging everything else as
// ignored-until-restart. Grounded in muqo16-vg-hitbot's
// pkg/config.Reloader: an fsnotify watch on the containing directory (to
// survive atomic rename-based writes) plus a debounce timer.
type Watcher struct {
	path   string
	log    Logger
	debounceDelay time.Duration

	mu  sync.RWMutex
	cur *Config

	cbMu      sync.Mutex
	callbacks []ChangeCallback

	watcher *fsnotify.Watcher
	timerMu sync.Mutex
	timer   *time.Timer
}

// NewWatcher creates a Watcher seeded with the already-loaded initial
// config.
func NewWatcher(path string, initial *Config, log Logger) *Watcher {
	if log == nil {
		log = nopLogger{}
	}
	return &Watcher{
		path:          path,
		log:           log,
		debounceDelay: time.Second,
		cur:           initial,
	}
}

// Current returns the watcher's current config snapshot.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur.Clone()
}

// OnChange registers a callback fired after every successful hot-reload.
func (w *Watcher) OnChange(cb ChangeCallback) {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Run watches the config file until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	w.watcher = fw
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("config watcher: watch %s: %w", dir, err)
	}
	_ = fw.Add(w.path) // best-effort; directory watch already covers renames

	for {
		select {
		case <-ctx.Done():
			w.timerMu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timerMu.Unlock()
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != filepath.Base(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Errorf("config watcher: %v", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	next, err := LoadFromFile(w.path)
	if err != nil {
		w.log.Errorf("config watcher: reload failed: %v", err)
		return
	}
	if err := next.Validate(); err != nil {
		w.log.Errorf("config watcher: reloaded config invalid: %v", err)
		return
	}

	w.mu.Lock()
	prev := w.cur
	merged := prev.Clone()
	merged.DebounceWindow = next.DebounceWindow
	merged.HistoryLimit = next.HistoryLimit
	merged.LogLevel = next.LogLevel
	w.cur = merged
	w.mu.Unlock()

	if next.ChromePort != prev.ChromePort {
		w.log.Warnf("config watcher: chrome_port changed, ignored until restart")
	}
	if next.DBPath != prev.DBPath {
		w.log.Warnf("config watcher: db_path changed, ignored until restart")
	}
	if next.APIListenAddr != prev.APIListenAddr || next.MetricsListenAddr != prev.MetricsListenAddr {
		w.log.Warnf("config watcher: listen address changed, ignored until restart")
	}

	w.log.Infof("config watcher: reloaded debounce_window=%v log_level=%s", merged.DebounceWindow, merged.LogLevel)

	w.cbMu.Lock()
	cbs := append([]ChangeCallback(nil), w.callbacks...)
	w.cbMu.Unlock()
	for _, cb := range cbs {
		cb(merged.Clone())
	}
}
