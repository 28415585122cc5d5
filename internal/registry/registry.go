// Package registry implements the Session Registry (C4): the in-memory
// authoritative mirror of sessions and their window bindings.
//
// The list is stored in insertion order alongside two O(1) indices (by
// SessionID, by WindowID) per SPEC_FULL.md's Design Notes directive to
// replace "shared mutable list plus scans" with index lookups.
package registry

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacekeeper/spacekeeperd/internal/model"
)

// StoreFallback is the subset of the store interface the registry needs for
// its read-through fallback (FetchByWindowID). Nothing else in the registry
// touches the store; PatchFromStore is handed its row by the caller.
type StoreFallback interface {
	FetchByWindowID(model.WindowID) (*model.Session, error)
}

// Logger is the minimal structured-logging surface the registry needs.
// internal/telemetry provides an implementation backed by zap.
type Logger interface {
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Registry is the in-memory authoritative mirror of sessions.
type Registry struct {
	mu sync.RWMutex

	order   []*model.Session            // insertion order, authoritative list
	byID    map[model.SessionID]int     // SessionID -> index into order
	byWin   map[model.WindowID]int      // WindowID -> index into order
	store   StoreFallback
	log     Logger
	initial bool // whether FetchByWindowID should ever consult the store

	boundGauge     prometheus.Gauge
	temporaryGauge prometheus.Gauge
}

// New creates an empty registry. store and log may be nil in tests; a nil
// store simply disables the get-by-window store fallback.
func New(store StoreFallback, log Logger) *Registry {
	if log == nil {
		log = nopLogger{}
	}
	r := &Registry{
		byID:  make(map[model.SessionID]int),
		byWin: make(map[model.WindowID]int),
		store: store,
		log:   log,
		boundGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spacekeeper",
			Subsystem: "registry",
			Name:      "sessions_bound",
			Help:      "Number of registry entries currently bound to a live window.",
		}),
		temporaryGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spacekeeper",
			Subsystem: "registry",
			Name:      "sessions_temporary",
			Help:      "Number of temporary (unsaved) registry entries.",
		}),
	}
	return r
}

// Collectors returns the registry's Prometheus collectors for registration.
func (r *Registry) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.boundGauge, r.temporaryGauge}
}

// MarkInitialized enables the store fallback in GetByWindow. Before
// initialization completes the registry is the sole source of truth even
// for misses, matching the consolidated Registry.get_by_window described in
// SPEC_FULL.md Design Notes item 5.
func (r *Registry) MarkInitialized() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initial = true
}

// GetByWindow returns the session bound to wid, checking memory first and
// falling back to the store only once the registry has finished
// initializing.
func (r *Registry) GetByWindow(wid model.WindowID) *model.Session {
	r.mu.RLock()
	if idx, ok := r.byWin[wid]; ok {
		s := r.order[idx].Clone()
		r.mu.RUnlock()
		return s
	}
	initial := r.initial
	store := r.store
	r.mu.RUnlock()

	if !initial || store == nil {
		return nil
	}
	sess, err := store.FetchByWindowID(wid)
	if err != nil || sess == nil {
		return nil
	}
	return sess
}

// GetByID returns a defensive copy of the session with the given id, or nil.
func (r *Registry) GetByID(id model.SessionID) *model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx, ok := r.byID[id]; ok {
		return r.order[idx].Clone()
	}
	return nil
}

// GetAll returns a shallow copy of the registry's session list (each
// element itself deep-copied so callers can't corrupt in-memory state).
func (r *Registry) GetAll() []*model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Session, len(r.order))
	for i, s := range r.order {
		out[i] = s.Clone()
	}
	return out
}

// AddSafely inserts session unless another entry already has the same id
// (when present) or the same window id (when present). It returns whether
// the session was added.
func (r *Registry) AddSafely(session *model.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID.Valid() {
		if _, exists := r.byID[session.ID]; exists {
			r.log.Errorf("registry: refusing to add duplicate session id %d", session.ID)
			return false
		}
	}
	if session.WindowID.Valid() {
		if _, exists := r.byWin[session.WindowID]; exists {
			r.log.Debugf("registry: refusing to add duplicate window binding %d", session.WindowID)
			return false
		}
	}

	idx := len(r.order)
	r.order = append(r.order, session)
	if session.ID.Valid() {
		r.byID[session.ID] = idx
	}
	if session.WindowID.Valid() {
		r.byWin[session.WindowID] = idx
	}
	r.refreshGaugesLocked()
	return true
}

// RemoveByID splices the entry with the given id out of the registry.
func (r *Registry) RemoveByID(id model.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[id]
	if !ok {
		return false
	}
	r.removeAtLocked(idx)
	return true
}

// removeAtLocked splices out the entry at idx, drops its id and window
// index entries, and reindexes every entry after it. Shared by RemoveByID
// and RemoveWindowBinding.
func (r *Registry) removeAtLocked(idx int) {
	removed := r.order[idx]
	r.order = append(r.order[:idx], r.order[idx+1:]...)
	delete(r.byID, removed.ID)
	delete(r.byWin, removed.WindowID)
	r.reindexFromLocked(idx)
	r.refreshGaugesLocked()
}

// reindexFromLocked repairs byID/byWin for every element shifted left by a
// removal starting at idx.
func (r *Registry) reindexFromLocked(idx int) {
	for i := idx; i < len(r.order); i++ {
		s := r.order[i]
		if s.ID.Valid() {
			r.byID[s.ID] = i
		}
		if s.WindowID.Valid() {
			r.byWin[s.WindowID] = i
		}
	}
}

// RemoveWindowBinding splices out the temporary/durable entry bound to wid
// (if any) and reports whether one was found. Durable entries are not
// unbound here — callers that want to preserve a durable row while clearing
// its window must use ClearWindowID instead; this method is for the
// "splice it out entirely" case (temporary sessions, or a foreign binding
// evicted during bind()).
func (r *Registry) RemoveWindowBinding(wid model.WindowID) (*model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byWin[wid]
	if !ok {
		return nil, false
	}
	removed := r.order[idx].Clone()
	r.removeAtLocked(idx)
	return removed, true
}

// ClearWindowID unbinds a durable session from its window in place, without
// removing it from the registry.
func (r *Registry) ClearWindowID(id model.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byID[id]
	if !ok {
		return
	}
	s := r.order[idx]
	delete(r.byWin, s.WindowID)
	s.WindowID = 0
	r.refreshGaugesLocked()
}

// BindWindow records that session id is now bound to wid, updating the
// window index. The caller is responsible for having already evicted any
// other entry previously bound to wid.
func (r *Registry) BindWindow(id model.SessionID, wid model.WindowID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("registry: bind: unknown session id %d", id)
	}
	r.order[idx].WindowID = wid
	r.byWin[wid] = idx
	r.refreshGaugesLocked()
	return nil
}

// Mutate runs fn with exclusive access to the session with the given id and
// persists the (possibly mutated) WindowID/ID indices afterward. fn may
// freely mutate any other field. Returns false if no such session exists.
func (r *Registry) Mutate(id model.SessionID, fn func(*model.Session)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byID[id]
	if !ok {
		return false
	}
	before := r.order[idx].WindowID
	fn(r.order[idx])
	after := r.order[idx].WindowID
	if before != after {
		if before.Valid() {
			delete(r.byWin, before)
		}
		if after.Valid() {
			r.byWin[after] = idx
		}
	}
	r.refreshGaugesLocked()
	return true
}

// MutateByWindow is Mutate's counterpart keyed by window id.
func (r *Registry) MutateByWindow(wid model.WindowID, fn func(*model.Session)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byWin[wid]
	if !ok {
		return false
	}
	s := r.order[idx]
	prevID := s.ID
	fn(s)
	if s.ID != prevID {
		delete(r.byID, prevID)
		if s.ID.Valid() {
			r.byID[s.ID] = idx
		}
	}
	r.refreshGaugesLocked()
	return true
}

// PatchFromStore applies a store row's fields onto the matching in-memory
// entry in place, so external holders of the *model.Session pointer observe
// the update. If no entry with that id exists, it logs a warning and
// returns the store row unmodified (spec.md §4.4's "reference-preserving
// update" fallback).
func (r *Registry) PatchFromStore(row *model.Session) *model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[row.ID]
	if !ok {
		r.log.Warnf("registry: patch-from-store: no in-memory entry for session %d, returning uncached row", row.ID)
		return row
	}

	existing := r.order[idx]
	wid := existing.WindowID // window binding is runtime-only, never in the store row
	existing.Name = row.Name
	existing.SessionHash = row.SessionHash
	existing.Tabs = row.Tabs
	existing.History = row.History
	existing.LastAccess = row.LastAccess
	existing.Bounds = row.Bounds
	existing.WindowID = wid
	return existing.Clone()
}

func (r *Registry) refreshGaugesLocked() {
	var bound, temp float64
	for _, s := range r.order {
		if s.WindowID.Valid() {
			bound++
		}
		if s.IsTemporary() {
			temp++
		}
	}
	r.boundGauge.Set(bound)
	r.temporaryGauge.Set(temp)
}

// LoadAll replaces the registry's contents wholesale with rows, in the
// order given. It is meant for the reconciliation engine's cold-start load
// from the store, before any window has been matched; callers elsewhere
// should use AddSafely/Mutate/RemoveByID instead.
func (r *Registry) LoadAll(rows []*model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = make([]*model.Session, 0, len(rows))
	r.byID = make(map[model.SessionID]int, len(rows))
	r.byWin = make(map[model.WindowID]int, len(rows))
	for _, row := range rows {
		idx := len(r.order)
		r.order = append(r.order, row)
		if row.ID.Valid() {
			r.byID[row.ID] = idx
		}
		if row.WindowID.Valid() {
			r.byWin[row.WindowID] = idx
		}
	}
	r.refreshGaugesLocked()
}

// Len returns the number of entries currently in the registry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
