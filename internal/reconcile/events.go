package reconcile

import (
	"strings"
	"time"

	"github.com/spacekeeper/spacekeeperd/internal/model"
	"github.com/spacekeeper/spacekeeperd/internal/platform"
)

// handlePlatformEvent implements spec.md §4.5.4: every event naming a
// closed window is discarded except tab-removed(isWindowClosing=true),
// which is redirected to handleWindowRemoved so a duplicate close is a
// pure early return there rather than reprocessed here.
func (e *Engine) handlePlatformEvent(ev platform.Event) {
	e.eventQueueCount.Add(1)

	if ev.Kind == platform.TabRemoved && ev.IsWindowClosing {
		e.handleWindowRemoved(ev.WindowID, true)
		return
	}
	if e.closedWindowIDs[ev.WindowID] {
		return
	}

	switch ev.Kind {
	case platform.TabCreated:
		// tab-updated(status=complete) covers the new tab once it loads.

	case platform.TabUpdated:
		if ev.StatusComplete {
			e.tabHistoryURLMap[ev.TabID] = ev.Tab.URL
			e.enqueueWindowEvent(ev.WindowID)
		}
		if ev.URLChanged {
			e.historyQueue = append(e.historyQueue, historyEdit{
				windowID: ev.WindowID, url: ev.NewURL, action: historyRemove,
			})
		}

	case platform.TabRemoved:
		if url, ok := e.tabHistoryURLMap[ev.TabID]; ok {
			e.historyQueue = append(e.historyQueue, historyEdit{
				windowID: ev.WindowID, url: url, action: historyAdd,
			})
			delete(e.tabHistoryURLMap, ev.TabID)
		}
		e.enqueueWindowEvent(ev.WindowID)

	case platform.TabMoved:
		e.enqueueWindowEvent(ev.WindowID)

	case platform.WindowFocusChanged:
		if !ev.WindowID.Valid() {
			return
		}
		e.lastFocusedWindow = ev.WindowID
		e.reg.MutateByWindow(ev.WindowID, func(s *model.Session) {
			s.LastAccess = time.Now()
		})

	case platform.WindowRemoved:
		e.handleWindowRemoved(ev.WindowID, true)

	case platform.WindowBoundsChanged:
		e.captureWindowBounds(ev.WindowID, ev.Bounds)
	}
}

// enqueueWindowEvent debounces window activity: repeated events for the
// same window collapse into a single flush, timed from the most recent
// one.
func (e *Engine) enqueueWindowEvent(wid model.WindowID) {
	if t, ok := e.sessionUpdateTimers[wid]; ok {
		t.Stop()
	} else {
		e.enqueuedAt[wid] = time.Now()
	}
	e.sessionUpdateTimers[wid] = time.AfterFunc(e.cfg.Debounce, func() {
		e.doAsync(func() { e.handleWindowEvent(wid) })
	})
}

// handleWindowEvent is the debounced flush: re-read the window's current
// tabs, drain any queued history edits for it, recompute its hash, and
// persist if it's durable. Unbound windows fall through to ensureSession so
// a match can still be found once tabs settle; for a window that already
// holds a temporary session, ensureSession's registry guard returns without
// re-matching it.
func (e *Engine) handleWindowEvent(wid model.WindowID) {
	delete(e.sessionUpdateTimers, wid)
	if since, ok := e.enqueuedAt[wid]; ok {
		delete(e.enqueuedAt, wid)
		if e.metrics != nil {
			e.metrics.DebounceFlushes.Observe(time.Since(since).Seconds())
		}
	}
	if !wid.Valid() || e.closedWindowIDs[wid] {
		return
	}

	win, err := e.plat.Get(e.runCtx, wid)
	if err != nil {
		e.handleWindowRemoved(wid, false)
		return
	}
	if isInternalWindow(win, e.cfg.ExtensionID) {
		return
	}

	sess := e.reg.GetByWindow(wid)
	if sess != nil {
		e.drainHistoryQueue(wid)
		e.reg.MutateByWindow(wid, func(s *model.Session) {
			s.Tabs = win.Tabs
			s.SessionHash = hashTabs(win.Tabs, e.cfg.ExtensionID)
		})
		if sess.ID.Valid() {
			e.persistSession(sess.ID)
		}
	}

	if sess == nil || sess.IsTemporary() {
		e.ensureSession(win)
	}
}

// handleWindowRemoved implements spec.md §4.5.6. A window already in the
// closed set is a pure early return — there is no log-then-continue
// artifact here (Open Question 4).
func (e *Engine) handleWindowRemoved(wid model.WindowID, markClosed bool) {
	if e.closedWindowIDs[wid] {
		return
	}
	if markClosed {
		e.closedWindowIDs[wid] = true
		if t, ok := e.sessionUpdateTimers[wid]; ok {
			t.Stop()
			delete(e.sessionUpdateTimers, wid)
			delete(e.enqueuedAt, wid)
		}
		if t, ok := e.boundsUpdateTimers[wid]; ok {
			t.Stop()
			delete(e.boundsUpdateTimers, wid)
		}
	}

	sess := e.reg.GetByWindow(wid)
	if sess == nil {
		return
	}
	if sess.IsTemporary() {
		e.reg.RemoveWindowBinding(wid)
		e.updateOpenWindowsGauge()
		return
	}
	e.reg.ClearWindowID(sess.ID)
	if e.metrics != nil {
		e.metrics.SessionsUnbound.Inc()
	}
	e.persistSession(sess.ID)
	e.updateOpenWindowsGauge()
}

// captureWindowBounds implements spec.md §4.5.7: bounds are only tracked
// for durable sessions, and persisted on their own 1s debounce timer
// independent of the tab-content debounce.
func (e *Engine) captureWindowBounds(wid model.WindowID, bounds model.Bounds) {
	sess := e.reg.GetByWindow(wid)
	if sess == nil || sess.IsTemporary() {
		return
	}
	e.reg.MutateByWindow(wid, func(s *model.Session) {
		b := bounds
		s.Bounds = &b
	})

	if t, ok := e.boundsUpdateTimers[wid]; ok {
		t.Stop()
	}
	id := sess.ID
	e.boundsUpdateTimers[wid] = time.AfterFunc(e.cfg.Debounce, func() {
		e.doAsync(func() {
			delete(e.boundsUpdateTimers, wid)
			if e.closedWindowIDs[wid] {
				return
			}
			e.persistSession(id)
		})
	})
}

// isInternalWindow reports whether win is the extension's own UI surface or
// a chrome-ism (popup/panel/app) that should never be reconciled into a
// session.
func isInternalWindow(win model.Window, extensionID string) bool {
	if extensionID != "" && len(win.Tabs) == 1 && strings.Contains(win.Tabs[0].URL, extensionID) {
		return true
	}
	switch win.Type {
	case "popup", "panel", "app":
		return true
	}
	return false
}
