// Package fake provides an in-memory platform.Windows implementation driven
// entirely by test code, so internal/reconcile's scenario tests (spec.md
// §8) can script exact event sequences without a real Chromium instance.
package fake

import (
	"context"
	"sync"

	"github.com/spacekeeper/spacekeeperd/internal/model"
	"github.com/spacekeeper/spacekeeperd/internal/platform"
)

// Platform is a scriptable platform.Windows.
type Platform struct {
	mu      sync.Mutex
	windows map[model.WindowID]model.Window
	ch      chan platform.Event
}

// New creates an empty fake platform.
func New() *Platform {
	return &Platform{
		windows: make(map[model.WindowID]model.Window),
		ch:      make(chan platform.Event, 256),
	}
}

// SetWindow registers or replaces a live window's contents, without
// emitting an event (use for initial/seed state before Subscribe).
func (p *Platform) SetWindow(w model.Window) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.windows[w.ID] = w
}

func (p *Platform) List(ctx context.Context) ([]model.Window, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Window, 0, len(p.windows))
	for _, w := range p.windows {
		out = append(out, w)
	}
	return out, nil
}

func (p *Platform) Get(ctx context.Context, id model.WindowID) (model.Window, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.windows[id]
	if !ok {
		return model.Window{}, platform.ErrWindowNotFound
	}
	return w, nil
}

func (p *Platform) Subscribe(ctx context.Context) (<-chan platform.Event, error) {
	return p.ch, nil
}

// Emit pushes an event to any subscriber and updates the fake's internal
// window state to match the semantics a real platform would apply.
func (p *Platform) Emit(ev platform.Event) {
	p.mu.Lock()
	switch ev.Kind {
	case platform.TabUpdated:
		w := p.windows[ev.WindowID]
		w.ID = ev.WindowID
		found := false
		for i, t := range w.Tabs {
			if t.ID == ev.Tab.ID {
				w.Tabs[i] = ev.Tab
				found = true
				break
			}
		}
		if !found {
			w.Tabs = append(w.Tabs, ev.Tab)
		}
		p.windows[ev.WindowID] = w
	case platform.TabRemoved:
		w := p.windows[ev.WindowID]
		for i, t := range w.Tabs {
			if t.ID == ev.TabID {
				w.Tabs = append(w.Tabs[:i], w.Tabs[i+1:]...)
				break
			}
		}
		p.windows[ev.WindowID] = w
		if ev.IsWindowClosing {
			delete(p.windows, ev.WindowID)
		}
	case platform.WindowRemoved:
		delete(p.windows, ev.WindowID)
	}
	p.mu.Unlock()

	p.ch <- ev
}

// Window returns a snapshot of a window's current (fake) state, for test
// assertions.
func (p *Platform) Window(id model.WindowID) (model.Window, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.windows[id]
	return w, ok
}
