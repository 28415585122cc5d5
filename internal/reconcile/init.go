package reconcile

import "context"

// runInitSequence implements spec.md §4.5.2: detect an extension version
// change and migrate stored hashes, load every durable session into the
// registry, clear any (never-actually-persisted) window bindings, then
// match every currently open window against the freshly loaded state.
func (e *Engine) runInitSequence(ctx context.Context) {
	last, err := e.store.GetExtensionVersion()
	if err != nil {
		e.log.Errorf("reconcile: init: get extension version: %v", err)
	}
	if last != "" && last != e.cfg.ExtensionVersion {
		e.resetAllSessionHashes()
	}
	if e.cfg.ExtensionVersion != "" && last != e.cfg.ExtensionVersion {
		if err := e.store.SetExtensionVersion(e.cfg.ExtensionVersion); err != nil {
			e.log.Errorf("reconcile: init: set extension version: %v", err)
		}
	}

	rows, err := e.store.FetchAll()
	if err != nil {
		e.log.Errorf("reconcile: init: fetch all: %v", err)
		rows = nil
	}
	e.reg.LoadAll(rows)
	for _, row := range rows {
		// window_id is never persisted (Open Question 3), so every loaded
		// row is already unbound; this is a defensive no-op kept in case a
		// future schema version ever does carry the field.
		e.reg.ClearWindowID(row.ID)
	}

	wins, err := e.plat.List(ctx)
	if err != nil {
		e.log.Errorf("reconcile: init: list windows: %v", err)
		wins = nil
	}

	e.tabHistoryURLMap = make(map[int64]string)
	for _, w := range wins {
		for _, t := range w.Tabs {
			e.tabHistoryURLMap[t.ID] = t.URL
		}
	}

	for _, w := range wins {
		e.initMatch(w)
	}

	e.reg.MarkInitialized()
	e.updateOpenWindowsGauge()
	e.log.Infof("reconcile: initialized with %d stored session(s), %d live window(s)", len(rows), len(wins))
}

// resetAllSessionHashes recomputes every stored session's hash against the
// current URL-cleaning rules, run once when the extension version changes
// (spec.md §4.5.2 migration hook).
func (e *Engine) resetAllSessionHashes() {
	rows, err := e.store.FetchAll()
	if err != nil {
		e.log.Errorf("reconcile: reset-hashes: fetch all: %v", err)
		return
	}
	for _, row := range rows {
		row.SessionHash = hashTabs(row.Tabs, e.cfg.ExtensionID)
		if _, err := e.store.Update(row); err != nil {
			e.log.Errorf("reconcile: reset-hashes: update %d: %v", row.ID, err)
		}
	}
}
