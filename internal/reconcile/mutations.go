package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/spacekeeper/spacekeeperd/internal/model"
	"github.com/spacekeeper/spacekeeperd/internal/store"
)

// SaveNewSession implements spec.md §4.5.8: persist a brand-new durable
// session, optionally claiming an already-open window's temporary binding.
// Rejects a window already bound to a different durable session.
func (e *Engine) SaveNewSession(ctx context.Context, name string, tabs []model.Tab, wid model.WindowID, bounds *model.Bounds) (*model.Session, error) {
	e.ensureInitialized(ctx)

	var result *model.Session
	var opErr error
	e.do(func() {
		if wid.Valid() {
			if existing := e.reg.GetByWindow(wid); existing != nil && !existing.IsTemporary() {
				opErr = fmt.Errorf("%w: window %d already bound to session %d", ErrInvariantViolation, wid, existing.ID)
				return
			}
		}

		draft := store.Draft{
			Name:        name,
			SessionHash: hashTabs(tabs, e.cfg.ExtensionID),
			Tabs:        tabs,
			LastAccess:  time.Now(),
			Bounds:      bounds,
		}
		created, err := e.store.Create(draft)
		if err != nil {
			opErr = fmt.Errorf("%w: %v", ErrStoreFailure, err)
			return
		}

		if wid.Valid() {
			if existing := e.reg.GetByWindow(wid); existing != nil && existing.IsTemporary() {
				e.reg.RemoveWindowBinding(wid)
			}
			created.WindowID = wid
		}
		if !e.reg.AddSafely(created) {
			opErr = fmt.Errorf("%w: session %d already present", ErrInvariantViolation, created.ID)
			return
		}
		if e.metrics != nil {
			e.metrics.SessionsCreated.Inc()
		}
		result = created.Clone()
	})
	return result, opErr
}

// UpdateSessionName implements spec.md §4.5.8's name-conflict arbitration:
// a same-id rename (capitalization-only) is always allowed; a rename onto
// another session's name either deletes that session (deleteOld) or fails
// with ErrNameConflict.
func (e *Engine) UpdateSessionName(ctx context.Context, id model.SessionID, newName string, deleteOld bool) (*model.Session, error) {
	e.ensureInitialized(ctx)

	var result *model.Session
	var opErr error
	e.do(func() {
		sess, err := e.resolveSessionLocked(id)
		if err != nil {
			opErr = err
			return
		}

		conflict, err := e.store.FetchByName(newName)
		if err != nil {
			opErr = fmt.Errorf("%w: %v", ErrStoreFailure, err)
			return
		}
		if conflict != nil && conflict.ID != id {
			if !deleteOld {
				opErr = fmt.Errorf("%w: name %q already used by session %d", ErrNameConflict, newName, conflict.ID)
				return
			}
			e.deleteSessionLocked(conflict.ID)
		}

		sess.Name = newName
		updated, err := e.store.Update(sess)
		if err != nil {
			opErr = fmt.Errorf("%w: %v", ErrStoreFailure, err)
			return
		}
		result = e.reg.PatchFromStore(updated)
	})
	return result, opErr
}

// SaveExistingSession implements spec.md §4.5.8: persist caller-supplied
// fields for an already-durable session, then reference-preserving-patch
// the registry's copy so any live window binding survives the write.
func (e *Engine) SaveExistingSession(ctx context.Context, session *model.Session) (*model.Session, error) {
	e.ensureInitialized(ctx)

	var result *model.Session
	var opErr error
	e.do(func() {
		if !session.ID.Valid() {
			opErr = fmt.Errorf("%w: session has no id", ErrInvariantViolation)
			return
		}
		updated, err := e.store.Update(session)
		if err != nil {
			opErr = fmt.Errorf("%w: %v", ErrStoreFailure, err)
			return
		}
		result = e.reg.PatchFromStore(updated)
	})
	return result, opErr
}

// DeleteSession implements spec.md §4.5.8.
func (e *Engine) DeleteSession(ctx context.Context, id model.SessionID) (bool, error) {
	e.ensureInitialized(ctx)

	var ok bool
	var opErr error
	e.do(func() {
		ok = e.deleteSessionLocked(id)
	})
	return ok, opErr
}

// deleteSessionLocked must only be called from within a command already
// running on the engine loop.
func (e *Engine) deleteSessionLocked(id model.SessionID) bool {
	removed, err := e.store.Remove(id)
	if err != nil {
		e.log.Errorf("reconcile: delete session %d: %v", id, err)
		return false
	}
	if removed {
		e.reg.RemoveByID(id)
		if e.metrics != nil {
			e.metrics.SessionsDeleted.Inc()
		}
	}
	return removed
}

// UpdateSessionTabs implements spec.md §4.5.8: caller-driven tab list
// replacement (e.g. a UI-initiated move-tab), distinct from the engine's
// own platform-event-driven tab tracking.
func (e *Engine) UpdateSessionTabs(ctx context.Context, id model.SessionID, tabs []model.Tab) (*model.Session, error) {
	e.ensureInitialized(ctx)

	var result *model.Session
	var opErr error
	e.do(func() {
		sess, err := e.resolveSessionLocked(id)
		if err != nil {
			opErr = err
			return
		}
		sess.Tabs = tabs
		sess.SessionHash = hashTabs(tabs, e.cfg.ExtensionID)
		updated, err := e.store.Update(sess)
		if err != nil {
			opErr = fmt.Errorf("%w: %v", ErrStoreFailure, err)
			return
		}
		result = e.reg.PatchFromStore(updated)
	})
	return result, opErr
}

// BackupSpace is the minimal shape internal/backup decodes a prior export
// into; ImportNewSession also builds one from a flat URL list.
type BackupSpace struct {
	Name   string
	Tabs   []model.Tab
	Bounds *model.Bounds
}

// RestoreFromBackup implements spec.md §4.5.8: recreate a durable session
// from a decoded backup, applying the same name-conflict arbitration as
// UpdateSessionName.
func (e *Engine) RestoreFromBackup(ctx context.Context, space BackupSpace, deleteOld bool) (*model.Session, error) {
	e.ensureInitialized(ctx)

	var result *model.Session
	var opErr error
	e.do(func() {
		if space.Name != "" {
			conflict, err := e.store.FetchByName(space.Name)
			if err != nil {
				opErr = fmt.Errorf("%w: %v", ErrStoreFailure, err)
				return
			}
			if conflict != nil {
				if !deleteOld {
					opErr = fmt.Errorf("%w: name %q already used by session %d", ErrNameConflict, space.Name, conflict.ID)
					return
				}
				e.deleteSessionLocked(conflict.ID)
			}
		}

		draft := store.Draft{
			Name:        space.Name,
			SessionHash: hashTabs(space.Tabs, e.cfg.ExtensionID),
			Tabs:        space.Tabs,
			LastAccess:  time.Now(),
			Bounds:      space.Bounds,
		}
		created, err := e.store.Create(draft)
		if err != nil {
			opErr = fmt.Errorf("%w: %v", ErrStoreFailure, err)
			return
		}
		e.reg.AddSafely(created)
		if e.metrics != nil {
			e.metrics.SessionsCreated.Inc()
		}
		result = created.Clone()
	})
	return result, opErr
}

// ImportNewSession implements spec.md §4.5.8: build an unnamed durable
// session from a flat URL list (the extension's "import" flow), with no
// name-conflict check since imported sessions start unnamed.
func (e *Engine) ImportNewSession(ctx context.Context, urls []string) (*model.Session, error) {
	tabs := make([]model.Tab, 0, len(urls))
	for _, u := range urls {
		tabs = append(tabs, model.Tab{URL: u})
	}
	return e.RestoreFromBackup(ctx, BackupSpace{Tabs: tabs}, false)
}

// ExtractTab finds tabID in whichever session currently holds it, removes
// it from that session's tab list, persists the change if the source is
// durable, and returns a copy of the removed tab. It runs on the engine
// loop like every other registry mutation, so a move-tab request never
// touches the registry from outside it, and the source session is
// persisted the same way UpdateSessionTabs persists the destination, so a
// move isn't half-durable.
func (e *Engine) ExtractTab(ctx context.Context, tabID int64) (model.Tab, bool) {
	e.ensureInitialized(ctx)

	var tab model.Tab
	var found bool
	e.do(func() {
		tab, found = e.extractTabLocked(tabID)
	})
	return tab, found
}

func (e *Engine) extractTabLocked(tabID int64) (model.Tab, bool) {
	for _, s := range e.reg.GetAll() {
		for i, t := range s.Tabs {
			if t.ID != tabID {
				continue
			}
			remaining := append(append([]model.Tab(nil), s.Tabs[:i:i]...), s.Tabs[i+1:]...)
			strip := func(sess *model.Session) { sess.Tabs = remaining }
			if s.ID.Valid() {
				e.reg.Mutate(s.ID, strip)
				e.persistSession(s.ID)
			} else if s.WindowID.Valid() {
				e.reg.MutateByWindow(s.WindowID, strip)
			}
			return t, true
		}
	}
	return model.Tab{}, false
}

// resolveSessionLocked fetches a session by id, preferring the registry's
// in-memory copy (which may carry a live window binding the store row
// never does) and falling back to the store for a session with no
// in-memory entry (e.g. never matched to a window this run).
func (e *Engine) resolveSessionLocked(id model.SessionID) (*model.Session, error) {
	if sess := e.reg.GetByID(id); sess != nil {
		return sess, nil
	}
	row, err := e.store.FetchByID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: no session %d", ErrInvariantViolation, id)
	}
	return row, nil
}
