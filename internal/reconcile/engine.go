// Package reconcile implements the session reconciliation engine: the
// state machine that binds ephemeral browser windows to durable sessions,
// debounces writes, and owns every session mutation.
//
// All mutating work runs on a single internal goroutine reading off
// e.commands, funneling every platform event through one handler. This
// makes "no parallel mutation of the registry" structural rather than a
// convention callers have to honor, and gives ensureInitialized its
// single-flight property for free: a concurrent caller's command simply
// queues behind the in-flight init command and runs after initState is
// already done.
package reconcile

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/spacekeeper/spacekeeperd/internal/model"
	"github.com/spacekeeper/spacekeeperd/internal/platform"
	"github.com/spacekeeper/spacekeeperd/internal/registry"
	"github.com/spacekeeper/spacekeeperd/internal/store"
	"github.com/spacekeeper/spacekeeperd/internal/telemetry"
)

type initState int

const (
	initNever initState = iota
	initDone
)

// Config carries the knobs the reconciliation engine needs that aren't
// already owned by its collaborators.
type Config struct {
	ExtensionID      string
	ExtensionVersion string
	Debounce         time.Duration
	HistoryLimit     int
}

// Logger is the minimal structured-logging surface the engine needs.
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Infof(string, ...any)  {}

type historyAction int

const (
	historyAdd historyAction = iota
	historyRemove
)

type historyEdit struct {
	windowID model.WindowID
	url      string
	action   historyAction
}

// Engine is the C5 reconciliation engine.
type Engine struct {
	cfg     Config
	store   *store.Store
	reg     *registry.Registry
	plat    platform.Windows
	log     Logger
	metrics *telemetry.Metrics

	runCtx   context.Context
	commands chan func()
	closeCh  chan struct{}

	initState initState

	tabHistoryURLMap    map[int64]string
	closedWindowIDs     map[model.WindowID]bool
	historyQueue        []historyEdit
	sessionUpdateTimers map[model.WindowID]*time.Timer
	boundsUpdateTimers  map[model.WindowID]*time.Timer
	enqueuedAt          map[model.WindowID]time.Time
	eventQueueCount     atomic.Uint64

	lastFocusedWindow model.WindowID
}

// CurrentWindowID returns the most recently focused window id, for
// request_current_space.
func (e *Engine) CurrentWindowID() model.WindowID {
	var wid model.WindowID
	e.do(func() { wid = e.lastFocusedWindow })
	return wid
}

// New builds an Engine. debounce defaults to one second if zero.
func New(cfg Config, st *store.Store, reg *registry.Registry, plat platform.Windows, log Logger, metrics *telemetry.Metrics) *Engine {
	if log == nil {
		log = nopLogger{}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = model.MaxHistory
	}
	return &Engine{
		cfg:                 cfg,
		store:               st,
		reg:                 reg,
		plat:                plat,
		log:                 log,
		metrics:             metrics,
		commands:            make(chan func()),
		closeCh:             make(chan struct{}),
		tabHistoryURLMap:    make(map[int64]string),
		closedWindowIDs:     make(map[model.WindowID]bool),
		sessionUpdateTimers: make(map[model.WindowID]*time.Timer),
		boundsUpdateTimers:  make(map[model.WindowID]*time.Timer),
		enqueuedAt:          make(map[model.WindowID]time.Time),
	}
}

// Run starts the engine's command loop and platform event pump. It blocks
// until ctx is cancelled. The cold-start init sequence runs synchronously
// here, before any event is drained and before the command loop accepts
// its first command: nothing else touches engine state yet, so there is
// no one to race. Calling ensureInitialized from inside the event pump
// instead would deadlock, since that handler already runs on this same
// command-loop goroutine and e.do would nest.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx

	events, err := e.plat.Subscribe(ctx)
	if err != nil {
		return err
	}

	e.runInitSequence(ctx)
	e.initState = initDone

	go func() {
		for ev := range events {
			ev := ev
			e.doAsync(func() { e.handlePlatformEvent(ev) })
		}
	}()

	for {
		select {
		case cmd := <-e.commands:
			cmd()
		case <-ctx.Done():
			close(e.closeCh)
			return nil
		}
	}
}

// do submits fn to the command loop and blocks until it has run.
func (e *Engine) do(fn func()) {
	done := make(chan struct{})
	select {
	case e.commands <- func() { fn(); close(done) }:
		<-done
	case <-e.closeCh:
	}
}

// doAsync submits fn without waiting for it to run, used by timer callbacks
// and the platform event pump so they never block their own goroutine on
// the engine loop.
func (e *Engine) doAsync(fn func()) {
	select {
	case e.commands <- fn:
	case <-e.closeCh:
	}
}

// ensureInitialized runs the cold-start/restart sequence exactly once,
// regardless of how many goroutines call it concurrently: every call
// funnels through e.do, so a caller that loses the race simply finds
// initState already initDone by the time its command runs.
func (e *Engine) ensureInitialized(ctx context.Context) {
	e.do(func() {
		if e.initState == initDone {
			return
		}
		e.runInitSequence(ctx)
		e.initState = initDone
	})
}

// Reinitialize forces a full re-run of the init sequence, as if the daemon
// had just restarted. Existing window bindings are rebuilt from scratch.
func (e *Engine) Reinitialize(ctx context.Context) {
	e.do(func() {
		e.initState = initNever
		e.runInitSequence(ctx)
		e.initState = initDone
	})
}

// updateOpenWindowsGauge reports the number of sessions currently bound to
// a live window. Called after every bind/unbind so the gauge never drifts
// from the registry it's reporting on.
func (e *Engine) updateOpenWindowsGauge() {
	if e.metrics == nil {
		return
	}
	var open int
	for _, s := range e.reg.GetAll() {
		if s.WindowID.Valid() {
			open++
		}
	}
	e.metrics.OpenWindowsGauge.Set(float64(open))
}

func (e *Engine) persistSession(id model.SessionID) {
	if !id.Valid() {
		return
	}
	s := e.reg.GetByID(id)
	if s == nil {
		return
	}
	if _, err := e.store.Update(s); err != nil {
		e.log.Errorf("reconcile: persist session %d: %v", id, err)
	}
}
