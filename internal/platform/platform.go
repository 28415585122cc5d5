// Package platform defines the boundary between the reconciliation engine
// and the browser it reconciles sessions against. spec.md treats the
// browser platform APIs as an external collaborator (§1 Out of scope); this
// package is that collaborator's interface, with concrete implementations
// in platform/cdp (a real Chromium connection) and platform/fake (a
// scriptable stand-in for tests).
package platform

import (
	"context"

	"github.com/spacekeeper/spacekeeperd/internal/model"
)

// EventKind enumerates the seven event kinds spec.md §4.5.4 lists.
type EventKind int

const (
	TabCreated EventKind = iota
	TabUpdated
	TabRemoved
	TabMoved
	WindowFocusChanged
	WindowRemoved
	WindowBoundsChanged
)

// Event is a single platform event, shaped to carry whichever fields its
// Kind needs; irrelevant fields are left zero.
type Event struct {
	Kind EventKind

	WindowID model.WindowID
	TabID    int64

	// TabUpdated
	Tab          model.Tab
	StatusComplete bool
	URLChanged   bool
	NewURL       string

	// TabRemoved
	IsWindowClosing bool

	// WindowBoundsChanged
	Bounds model.Bounds
}

// Windows is the interface the reconciliation engine depends on to observe
// and query live browser state. Implementations must deliver events for the
// same window id in arrival order; no ordering is guaranteed across window
// ids (spec.md §5).
type Windows interface {
	// List enumerates every live window, populated with its current tabs.
	List(ctx context.Context) ([]model.Window, error)

	// Get fetches a single live window. Implementations should return
	// ErrWindowNotFound if the window no longer exists — the engine treats
	// that as a StalePlatformHandle, not a closed-window signal.
	Get(ctx context.Context, id model.WindowID) (model.Window, error)

	// Subscribe returns the channel events are delivered on. cdp.Adapter
	// keeps it open across reconnects and closes it once the context given
	// to its Run is cancelled; fake.Platform never closes it.
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// ErrWindowNotFound is returned by Get when the window id is unknown to the
// platform (transient failure, not a closed-window signal).
var ErrWindowNotFound = errWindowNotFound{}

type errWindowNotFound struct{}

func (errWindowNotFound) Error() string { return "platform: window not found" }
