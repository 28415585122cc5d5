package reconcile

import (
	"time"

	"github.com/spacekeeper/spacekeeperd/internal/model"
	"github.com/spacekeeper/spacekeeperd/internal/sessionhash"
)

func hashTabs(tabs []model.Tab, extensionID string) uint32 {
	return sessionhash.Hash(tabs, extensionID)
}

// initMatch runs ensureSession for a window discovered during startup,
// skipping it if the registry already binds that window.
func (e *Engine) initMatch(win model.Window) {
	if e.reg.GetByWindow(win.ID) != nil {
		return
	}
	e.ensureSession(win)
}

// ensureSession implements spec.md §4.5.3: hash the window's current tabs,
// look for an unbound durable session with a matching hash, bind it if
// found, otherwise create a temporary session for the window.
func (e *Engine) ensureSession(win model.Window) {
	if e.reg.GetByWindow(win.ID) != nil {
		return
	}

	h := hashTabs(win.Tabs, e.cfg.ExtensionID)

	rows, err := e.store.FetchAll()
	if err != nil {
		e.log.Errorf("reconcile: ensure-session: fetch all: %v", err)
		rows = nil
	}

	var match *model.Session
	for _, row := range rows {
		if row.SessionHash != h {
			continue
		}
		if existing := e.reg.GetByID(row.ID); existing != nil && existing.WindowID.Valid() {
			continue // already bound to some other window
		}
		match = row
		break
	}

	if match != nil {
		e.bind(match, win.ID)
		return
	}

	temp := &model.Session{WindowID: win.ID, SessionHash: h, Tabs: win.Tabs, LastAccess: time.Now()}
	if !e.reg.AddSafely(temp) {
		return // lost a race to another handler binding this window first
	}
	if e.metrics != nil {
		e.metrics.SessionsCreated.Inc()
	}
	e.updateOpenWindowsGauge()
}

// bind implements spec.md §4.5.3's bind step: evict whatever (if anything)
// currently occupies wid, attach row to it, and persist.
func (e *Engine) bind(row *model.Session, wid model.WindowID) {
	if existing := e.reg.GetByWindow(wid); existing != nil && existing.ID != row.ID {
		if existing.IsTemporary() {
			e.reg.RemoveWindowBinding(wid)
		} else {
			e.reg.ClearWindowID(existing.ID)
			e.persistSession(existing.ID)
		}
	}

	if e.reg.GetByID(row.ID) != nil {
		if err := e.reg.BindWindow(row.ID, wid); err != nil {
			e.log.Errorf("reconcile: bind: %v", err)
			return
		}
	} else {
		clone := row.Clone()
		clone.WindowID = wid
		if !e.reg.AddSafely(clone) {
			return
		}
	}

	if e.metrics != nil {
		e.metrics.SessionsBound.Inc()
	}
	e.persistSession(row.ID)
	e.updateOpenWindowsGauge()
}
