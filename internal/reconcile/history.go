package reconcile

import (
	"github.com/spacekeeper/spacekeeperd/internal/model"
	"github.com/spacekeeper/spacekeeperd/internal/urlnorm"
)

// drainHistoryQueue implements the history half of spec.md §4.5.5: splice
// out every queued edit naming wid, newest first, and apply each to the
// window's bound session (durable or temporary — both carry History).
func (e *Engine) drainHistoryQueue(wid model.WindowID) {
	var matched []historyEdit
	for i := len(e.historyQueue) - 1; i >= 0; i-- {
		if e.historyQueue[i].windowID == wid {
			matched = append(matched, e.historyQueue[i])
		}
	}
	if len(matched) == 0 {
		return
	}

	remaining := e.historyQueue[:0:0]
	for _, ed := range e.historyQueue {
		if ed.windowID != wid {
			remaining = append(remaining, ed)
		}
	}
	e.historyQueue = remaining

	for _, ed := range matched {
		switch ed.action {
		case historyAdd:
			e.addURLToSessionHistory(wid, ed.url)
		case historyRemove:
			e.removeURLFromSessionHistory(wid, ed.url)
		}
	}
}

// addURLToSessionHistory implements spec.md §4.5.5: a closed tab's URL is
// only recorded if exactly one tab in the session's recorded tab list
// matches it after cleaning (an ambiguous match is dropped rather than
// guessed at). The drain runs before handleWindowEvent refreshes s.Tabs
// from the live window, so that list still holds the closed tab.
func (e *Engine) addURLToSessionHistory(wid model.WindowID, raw string) {
	clean := urlnorm.Clean(raw, e.cfg.ExtensionID)
	if clean == "" {
		return
	}
	e.reg.MutateByWindow(wid, func(s *model.Session) {
		var match model.Tab
		count := 0
		for _, t := range s.Tabs {
			if urlnorm.Clean(t.URL, e.cfg.ExtensionID) == clean {
				count++
				match = t
			}
		}
		if count != 1 {
			return
		}

		filtered := s.History[:0:0]
		for _, h := range s.History {
			if urlnorm.Clean(h.URL, e.cfg.ExtensionID) != clean {
				filtered = append(filtered, h)
			}
		}
		filtered = append([]model.Tab{match}, filtered...)
		limit := e.cfg.HistoryLimit
		if limit <= 0 {
			limit = model.MaxHistory
		}
		if len(filtered) > limit {
			filtered = filtered[:limit]
		}
		s.History = filtered
	})
}

// removeURLFromSessionHistory drops any history entry matching the
// now-superseded URL (spec.md §4.5.5, fired on tab-updated url changes).
func (e *Engine) removeURLFromSessionHistory(wid model.WindowID, raw string) {
	clean := urlnorm.Clean(raw, e.cfg.ExtensionID)
	if clean == "" {
		return
	}
	e.reg.MutateByWindow(wid, func(s *model.Session) {
		filtered := s.History[:0:0]
		for _, h := range s.History {
			if urlnorm.Clean(h.URL, e.cfg.ExtensionID) != clean {
				filtered = append(filtered, h)
			}
		}
		s.History = filtered
	})
}
