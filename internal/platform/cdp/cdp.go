// Package cdp implements platform.Windows against a real Chromium instance
// over the Chrome DevTools Protocol.
//
// Chromium's remote-debugging surface does not expose a notion of
// multiple OS-level browser windows the way a browser extension's
// window/tab APIs do; this adapter instead groups CDP page targets by
// BrowserContextID and treats each context as one "window", the closest
// faithful analogue reachable over CDP.
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/spacekeeper/spacekeeperd/internal/model"
	"github.com/spacekeeper/spacekeeperd/internal/platform"
)

const targetTypePage = "page"

// Logger is the minimal structured-logging surface the adapter needs.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Connection retry settings.
const (
	reconnectInterval = 5 * time.Second
	maxReconnectWait  = 30 * time.Second
)

// Adapter implements platform.Windows against a live Chrome instance.
type Adapter struct {
	port string
	log  Logger

	mu      sync.RWMutex
	targets map[string]targetInfo // targetID -> last-known info
	winByID map[model.WindowID][]string

	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc

	events chan platform.Event
}

type targetInfo struct {
	browserContextID string
	tab              model.Tab
	tabType          string
}

// New creates an Adapter that will connect to Chrome's remote-debugging
// endpoint on port.
func New(port string, log Logger) *Adapter {
	if log == nil {
		log = nopLogger{}
	}
	return &Adapter{
		port:    port,
		log:     log,
		targets: make(map[string]targetInfo),
		winByID: make(map[model.WindowID][]string),
		events:  make(chan platform.Event, 256),
	}
}

// windowIDFor derives a stable WindowID from a browser context id by
// folding it the same way sessionhash folds URLs, so window ids stay
// consistent for the life of the browser context without needing a side
// table keyed by the (non-numeric) context id string.
func windowIDFor(browserContextID string) model.WindowID {
	var h uint32
	for _, c := range browserContextID {
		h = h*31 + uint32(c)
	}
	if h == 0 {
		h = 1
	}
	return model.WindowID(h)
}

// Run connects to Chrome and begins translating target events into
// platform.Events, reconnecting with backoff on disconnect, until ctx is
// cancelled. It is meant to be run in its own goroutine.
func (a *Adapter) Run(ctx context.Context) error {
	retryWait := reconnectInterval
	for {
		select {
		case <-ctx.Done():
			close(a.events)
			return nil
		default:
		}

		if err := a.connect(ctx); err != nil {
			a.log.Errorf("cdp: connect failed: %v", err)
		} else {
			retryWait = reconnectInterval
			select {
			case <-ctx.Done():
				close(a.events)
				return nil
			case <-a.browserCtx.Done():
				a.log.Warnf("cdp: disconnected, retrying in %v", retryWait)
			}
		}

		select {
		case <-ctx.Done():
			close(a.events)
			return nil
		case <-time.After(retryWait):
			retryWait *= 2
			if retryWait > maxReconnectWait {
				retryWait = maxReconnectWait
			}
		}
	}
}

func (a *Adapter) connect(ctx context.Context) error {
	browserInfo, err := DiscoverBrowserInfo(a.port)
	if err != nil {
		return fmt.Errorf("discover browser info: %w", err)
	}

	allocatorCtx, allocatorCancel := chromedp.NewRemoteAllocator(ctx, browserInfo.WebSocketDebuggerURL)
	a.allocatorCancel = allocatorCancel

	a.browserCtx, a.browserCancel = chromedp.NewContext(allocatorCtx)

	if err := chromedp.Run(a.browserCtx, target.SetDiscoverTargets(true)); err != nil {
		a.browserCancel()
		allocatorCancel()
		return fmt.Errorf("enable target discovery: %w", err)
	}

	initial, err := DiscoverTabs(a.port)
	if err != nil {
		a.browserCancel()
		allocatorCancel()
		return fmt.Errorf("discover initial tabs: %w", err)
	}

	chromedp.ListenTarget(a.browserCtx, func(ev any) {
		switch ev := ev.(type) {
		case *target.EventTargetCreated:
			if ev.TargetInfo.Type == targetTypePage {
				a.handleCreated(ev.TargetInfo)
			}
		case *target.EventTargetDestroyed:
			a.handleDestroyed(string(ev.TargetID))
		case *target.EventTargetInfoChanged:
			if ev.TargetInfo.Type == targetTypePage {
				a.handleInfoChanged(ev.TargetInfo)
			}
		}
	})

	go func() {
		<-a.browserCtx.Done()
		allocatorCancel()
	}()

	for _, t := range initial {
		a.handleCreated(&target.Info{
			TargetID:         target.ID(t.TargetID),
			Type:             t.Type,
			Title:            t.Title,
			URL:              t.URL,
			BrowserContextID: target.BrowserContextID(t.BrowserContextID),
		})
	}

	a.log.Infof("cdp: monitoring started (%d initial tab(s))", len(initial))
	return nil
}

func (a *Adapter) handleCreated(info *target.Info) {
	wid := windowIDFor(string(info.BrowserContextID))
	tab := model.Tab{ID: tabIDFrom(info.TargetID), URL: info.URL, Title: info.Title}

	a.mu.Lock()
	a.targets[string(info.TargetID)] = targetInfo{browserContextID: string(info.BrowserContextID), tab: tab, tabType: info.Type}
	a.winByID[wid] = append(a.winByID[wid], string(info.TargetID))
	a.mu.Unlock()

	a.events <- platform.Event{
		Kind:           platform.TabUpdated,
		WindowID:       wid,
		TabID:          tab.ID,
		Tab:            tab,
		StatusComplete: true,
	}
}

func (a *Adapter) handleDestroyed(targetID string) {
	a.mu.Lock()
	info, ok := a.targets[targetID]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.targets, targetID)
	wid := windowIDFor(info.browserContextID)
	ids := a.winByID[wid]
	for i, id := range ids {
		if id == targetID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	closing := len(ids) == 0
	if closing {
		delete(a.winByID, wid)
	} else {
		a.winByID[wid] = ids
	}
	a.mu.Unlock()

	a.events <- platform.Event{
		Kind:            platform.TabRemoved,
		WindowID:        wid,
		TabID:           info.tab.ID,
		IsWindowClosing: closing,
	}
}

func (a *Adapter) handleInfoChanged(info *target.Info) {
	wid := windowIDFor(string(info.BrowserContextID))
	tab := model.Tab{ID: tabIDFrom(info.TargetID), URL: info.URL, Title: info.Title}

	a.mu.Lock()
	a.targets[string(info.TargetID)] = targetInfo{browserContextID: string(info.BrowserContextID), tab: tab, tabType: info.Type}
	a.mu.Unlock()

	a.events <- platform.Event{
		Kind:           platform.TabUpdated,
		WindowID:       wid,
		TabID:          tab.ID,
		Tab:            tab,
		StatusComplete: true,
		URLChanged:     true,
		NewURL:         info.URL,
	}
}

// tabIDFrom derives a stable numeric tab id from a CDP target id string.
func tabIDFrom(id target.ID) int64 {
	var h int64
	for _, c := range string(id) {
		h = h*31 + int64(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}

func (a *Adapter) List(ctx context.Context) ([]model.Window, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	byWin := make(map[model.WindowID][]model.Tab)
	for _, info := range a.targets {
		wid := windowIDFor(info.browserContextID)
		byWin[wid] = append(byWin[wid], info.tab)
	}

	out := make([]model.Window, 0, len(byWin))
	for wid, tabs := range byWin {
		out = append(out, model.Window{ID: wid, Tabs: tabs, Type: "normal"})
	}
	return out, nil
}

func (a *Adapter) Get(ctx context.Context, id model.WindowID) (model.Window, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids, ok := a.winByID[id]
	if !ok || len(ids) == 0 {
		return model.Window{}, platform.ErrWindowNotFound
	}
	w := model.Window{ID: id, Type: "normal"}
	for _, tid := range ids {
		if info, ok := a.targets[tid]; ok {
			w.Tabs = append(w.Tabs, info.tab)
		}
	}
	return w, nil
}

func (a *Adapter) Subscribe(ctx context.Context) (<-chan platform.Event, error) {
	return a.events, nil
}

// Close releases the adapter's CDP connections, if any are open.
func (a *Adapter) Close() {
	if a.browserCancel != nil {
		a.browserCancel()
	}
	if a.allocatorCancel != nil {
		a.allocatorCancel()
	}
}
