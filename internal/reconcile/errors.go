package reconcile

import "errors"

// Error kinds matched with errors.Is at call sites, per spec.md §7's kind
// table. None of these cross the internal/api boundary as Go errors — the
// dispatcher there answers every one of them, ErrNameConflict included,
// with the wire protocol's plain false.
var (
	ErrStoreFailure       = errors.New("reconcile: store failure")
	ErrInvariantViolation = errors.New("reconcile: invariant violation")
	ErrStalePlatform      = errors.New("reconcile: stale platform handle")
	ErrNameConflict       = errors.New("reconcile: name conflict")
)
