package api

import (
	"context"
	"sort"

	"github.com/spacekeeper/spacekeeperd/internal/backup"
	"github.com/spacekeeper/spacekeeperd/internal/model"
	"github.com/spacekeeper/spacekeeperd/internal/platform"
	"github.com/spacekeeper/spacekeeperd/internal/reconcile"
	"github.com/spacekeeper/spacekeeperd/internal/registry"
	"github.com/spacekeeper/spacekeeperd/internal/store"
)

// Dispatcher routes every spec.md §6 request to the reconciliation engine
// (mutations) or the registry (read-only queries).
type Dispatcher struct {
	engine *reconcile.Engine
	reg    *registry.Registry
	plat   platform.Windows
}

// NewDispatcher builds a Dispatcher over an already-running engine.
func NewDispatcher(engine *reconcile.Engine, reg *registry.Registry, plat platform.Windows) *Dispatcher {
	return &Dispatcher{engine: engine, reg: reg, plat: plat}
}

// Handle dispatches a single request. The second return value is false for
// a malformed request, per spec.md §7: the caller must drop the message
// and send no response at all.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (any, bool) {
	switch req.Action {

	// Queries

	case "request_session_presence":
		if req.Name == "" {
			return nil, false
		}
		for _, s := range d.reg.GetAll() {
			if store.NamesEqual(s.Name, req.Name) {
				return map[string]bool{"exists": true, "is_open": s.WindowID.Valid()}, true
			}
		}
		return map[string]bool{"exists": false, "is_open": false}, true

	case "request_space_from_window_id":
		wid, ok := req.windowID()
		if !ok {
			return nil, false
		}
		if s := d.reg.GetByWindow(wid); s != nil {
			return spaceFromSession(s), true
		}
		return false, true

	case "request_current_space":
		wid := d.engine.CurrentWindowID()
		if !wid.Valid() {
			return false, true
		}
		if s := d.reg.GetByWindow(wid); s != nil {
			return spaceFromSession(s), true
		}
		return false, true

	case "request_space_from_session_id":
		sid, ok := req.sessionID()
		if !ok {
			return nil, false
		}
		if s := d.reg.GetByID(sid); s != nil {
			return spaceFromSession(s), true
		}
		return false, true

	case "request_all_spaces":
		return allSpacesSorted(d.reg.GetAll()), true

	case "request_tab_detail":
		for _, s := range d.reg.GetAll() {
			for _, t := range s.Tabs {
				if t.ID == int64(req.TabID) {
					return t, true
				}
			}
		}
		return false, true

	// Mutations

	case "save_new_session":
		wid, ok := req.windowID()
		if !ok || req.Name == "" {
			return nil, false
		}
		win, err := d.plat.Get(ctx, wid)
		if err != nil {
			return false, true
		}
		sess, err := d.engine.SaveNewSession(ctx, req.Name, win.Tabs, wid, nil)
		if err != nil {
			return false, true
		}
		return spaceFromSession(sess), true

	case "update_session_name":
		sid, ok := req.sessionID()
		if !ok || req.Name == "" {
			return nil, false
		}
		sess, err := d.engine.UpdateSessionName(ctx, sid, req.Name, bool(req.DeleteOld))
		if err != nil {
			return false, true
		}
		return spaceFromSession(sess), true

	case "delete_session":
		sid, ok := req.sessionID()
		if !ok {
			return nil, false
		}
		ok, err := d.engine.DeleteSession(ctx, sid)
		if err != nil {
			return false, true
		}
		return ok, true

	case "update_session_tabs":
		sid, ok := req.sessionID()
		if !ok {
			return nil, false
		}
		sess := d.reg.GetByID(sid)
		if sess == nil {
			return false, true
		}
		updated, err := d.engine.UpdateSessionTabs(ctx, sid, sess.Tabs)
		if err != nil {
			return false, true
		}
		return spaceFromSession(updated), true

	// load_session/load_window/switch_to_space resolve and return the
	// target Space; actually focusing the browser window is the UI's own
	// platform-API call (spec.md §1 treats platform control as an external
	// collaborator, not something this daemon issues commands to).
	case "load_session", "switch_to_space":
		if sid, ok := req.sessionID(); ok {
			if s := d.reg.GetByID(sid); s != nil {
				return spaceFromSession(s), true
			}
			return false, true
		}
		if wid, ok := req.windowID(); ok {
			if s := d.reg.GetByWindow(wid); s != nil {
				return spaceFromSession(s), true
			}
			return false, true
		}
		return nil, false

	case "load_window":
		wid, ok := req.windowID()
		if !ok {
			return nil, false
		}
		if s := d.reg.GetByWindow(wid); s != nil {
			return spaceFromSession(s), true
		}
		return false, true

	case "move_tab_to_session", "add_link_to_session":
		sid, ok := req.sessionID()
		if !ok {
			return nil, false
		}
		sess := d.reg.GetByID(sid)
		if sess == nil {
			return false, true
		}
		tabs := d.resolveIncomingTab(ctx, sess.Tabs, req)
		updated, err := d.engine.UpdateSessionTabs(ctx, sid, tabs)
		if err != nil {
			return false, true
		}
		return spaceFromSession(updated), true

	case "move_tab_to_window", "add_link_to_window":
		wid, ok := req.windowID()
		if !ok {
			return nil, false
		}
		sess := d.reg.GetByWindow(wid)
		if sess == nil {
			return false, true
		}
		tabs := d.resolveIncomingTab(ctx, sess.Tabs, req)
		updated, err := d.engine.UpdateSessionTabs(ctx, sess.ID, tabs)
		if err != nil {
			return false, true
		}
		return spaceFromSession(updated), true

	case "move_tab_to_new_session", "add_link_to_new_session":
		if req.Name == "" {
			return nil, false
		}
		var tab model.Tab
		if req.URL != "" {
			tab = model.Tab{URL: req.URL}
		} else {
			tab = model.Tab{ID: int64(req.TabID)}
		}
		sess, err := d.engine.SaveNewSession(ctx, req.Name, []model.Tab{tab}, 0, nil)
		if err != nil {
			return false, true
		}
		return spaceFromSession(sess), true

	case "import_new_session":
		if len(req.URLList) == 0 {
			return nil, false
		}
		urls, err := backup.DecodeURLList(req.URLList)
		if err != nil || len(urls) == 0 {
			return false, true
		}
		sess, err := d.engine.ImportNewSession(ctx, urls)
		if err != nil {
			return false, true
		}
		return spaceFromSession(sess), true

	case "restore_from_backup":
		if len(req.Space) == 0 {
			return nil, false
		}
		space, err := backup.DecodeSnapshot(req.Space)
		if err != nil {
			return false, true
		}
		sess, err := d.engine.RestoreFromBackup(ctx, space, bool(req.DeleteOld))
		if err != nil {
			return false, true
		}
		return spaceFromSession(sess), true

	// UI control actions carry no engine state; the daemon simply echoes
	// acknowledgement so the UI layer (out of scope, spec.md §1) can
	// proceed with its own local rendering.
	case "request_show_spaces", "request_show_switcher", "request_show_mover",
		"request_show_keyboard_shortcuts", "request_close":
		return true, true

	case "generate_popup_params":
		return map[string]string{"action": req.PopupAction, "tab_url": req.TabURL}, true

	default:
		return nil, false
	}
}

// resolveIncomingTab appends the tab a move/add-link request targets onto
// destTabs. add_link_* requests carry a bare URL; move_tab_* requests carry
// a tab_id that must be found and removed from whichever session currently
// holds it, so the tab doesn't end up duplicated across two sessions. The
// removal itself runs on the engine loop via ExtractTab, the same place
// every other registry write happens, and persists the source session.
func (d *Dispatcher) resolveIncomingTab(ctx context.Context, destTabs []model.Tab, req Request) []model.Tab {
	out := append([]model.Tab(nil), destTabs...)
	if req.URL != "" {
		return append(out, model.Tab{URL: req.URL})
	}

	moved, ok := d.engine.ExtractTab(ctx, int64(req.TabID))
	if !ok {
		moved = model.Tab{ID: int64(req.TabID)}
	}
	return append(out, moved)
}

// allSpacesSorted implements spec.md §6's sort order: zero-tab sessions
// dropped, open sessions before closed, descending last_access within
// each group.
func allSpacesSorted(sessions []*model.Session) []Space {
	filtered := make([]*model.Session, 0, len(sessions))
	for _, s := range sessions {
		if len(s.Tabs) > 0 {
			filtered = append(filtered, s)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.WindowID.Valid() != b.WindowID.Valid() {
			return a.WindowID.Valid()
		}
		return a.LastAccess.After(b.LastAccess)
	})
	out := make([]Space, len(filtered))
	for i, s := range filtered {
		out[i] = spaceFromSession(s)
	}
	return out
}
