package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacekeeper/spacekeeperd/internal/model"
	"github.com/spacekeeper/spacekeeperd/internal/platform"
	"github.com/spacekeeper/spacekeeperd/internal/platform/fake"
	"github.com/spacekeeper/spacekeeperd/internal/registry"
	"github.com/spacekeeper/spacekeeperd/internal/store"
)

const testDebounce = 20 * time.Millisecond

func newTestEngine(t *testing.T) (*Engine, *fake.Platform, context.Context) {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := registry.New(st, nil)
	plat := fake.New()
	eng := New(Config{ExtensionID: "abcdefextid", Debounce: testDebounce}, st, reg, plat, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go eng.Run(ctx)

	return eng, plat, ctx
}

func TestEngine_NewWindowGetsTemporarySession(t *testing.T) {
	eng, plat, ctx := newTestEngine(t)

	plat.SetWindow(model.Window{ID: 1, Tabs: []model.Tab{{ID: 10, URL: "https://example.com"}}, Type: "normal"})
	eng.ensureInitialized(ctx)

	sess := eng.reg.GetByWindow(1)
	require.NotNil(t, sess)
	require.True(t, sess.IsTemporary())
}

func TestEngine_SaveNewSessionBindsWindow(t *testing.T) {
	eng, plat, ctx := newTestEngine(t)

	plat.SetWindow(model.Window{ID: 1, Tabs: []model.Tab{{ID: 10, URL: "https://example.com"}}, Type: "normal"})
	eng.ensureInitialized(ctx)

	saved, err := eng.SaveNewSession(ctx, "Work", []model.Tab{{ID: 10, URL: "https://example.com"}}, 1, nil)
	require.NoError(t, err)
	require.True(t, saved.ID.Valid())

	sess := eng.reg.GetByWindow(1)
	require.NotNil(t, sess)
	require.Equal(t, saved.ID, sess.ID)
	require.Equal(t, "Work", sess.Name)
}

// TestEngine_RestartRebind exercises spec.md §8 scenario: a durable
// session rebinds to the same window after a full re-init, matched purely
// by hash equality (window ids are not stable across restarts).
func TestEngine_RestartRebind(t *testing.T) {
	eng, plat, ctx := newTestEngine(t)

	tabs := []model.Tab{{ID: 10, URL: "https://example.com"}}
	plat.SetWindow(model.Window{ID: 1, Tabs: tabs, Type: "normal"})
	eng.ensureInitialized(ctx)

	saved, err := eng.SaveNewSession(ctx, "Work", tabs, 1, nil)
	require.NoError(t, err)

	eng.Reinitialize(ctx)

	sess := eng.reg.GetByWindow(1)
	require.NotNil(t, sess)
	require.Equal(t, saved.ID, sess.ID)
	require.Equal(t, "Work", sess.Name)
}

// TestEngine_BurstCoalescing exercises spec.md §8 scenario: a rapid burst
// of tab-updated events for one window produces no durable write until the
// debounce window elapses, and only the final tab state is persisted.
func TestEngine_BurstCoalescing(t *testing.T) {
	eng, plat, ctx := newTestEngine(t)

	plat.SetWindow(model.Window{ID: 1, Tabs: []model.Tab{{ID: 10, URL: "https://a.example"}}, Type: "normal"})
	eng.ensureInitialized(ctx)

	saved, err := eng.SaveNewSession(ctx, "Work", []model.Tab{{ID: 10, URL: "https://a.example"}}, 1, nil)
	require.NoError(t, err)

	for i, u := range []string{"https://b.example", "https://c.example", "https://d.example"} {
		plat.Emit(platform.Event{
			Kind: platform.TabUpdated, WindowID: 1, TabID: 10,
			Tab: model.Tab{ID: 10, URL: u}, StatusComplete: true,
		})
		if i == 0 {
			// Before the debounce fires, the store must still reflect the
			// pre-burst state.
			row, err := eng.store.FetchByID(saved.ID)
			require.NoError(t, err)
			require.Equal(t, []model.Tab{{ID: 10, URL: "https://a.example"}}, row.Tabs)
		}
		time.Sleep(testDebounce / 4)
	}

	require.Eventually(t, func() bool {
		row, err := eng.store.FetchByID(saved.ID)
		return err == nil && len(row.Tabs) == 1 && row.Tabs[0].URL == "https://d.example"
	}, time.Second, 5*time.Millisecond)
}

// TestEngine_NameConflictConfirmation exercises spec.md §8 scenario: a
// rename onto an existing name requires explicit confirmation
// (deleteOld=true) to replace the conflicting session.
func TestEngine_NameConflictConfirmation(t *testing.T) {
	eng, _, ctx := newTestEngine(t)

	a, err := eng.SaveNewSession(ctx, "Alpha", []model.Tab{{URL: "https://a.example"}}, 0, nil)
	require.NoError(t, err)
	b, err := eng.SaveNewSession(ctx, "Beta", []model.Tab{{URL: "https://b.example"}}, 0, nil)
	require.NoError(t, err)

	_, err = eng.UpdateSessionName(ctx, a.ID, "Beta", false)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNameConflict))

	renamed, err := eng.UpdateSessionName(ctx, a.ID, "Beta", true)
	require.NoError(t, err)
	require.Equal(t, "Beta", renamed.Name)

	gone, err := eng.store.FetchByID(b.ID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

// TestEngine_DuplicateCloseSafety exercises spec.md §8 scenario: the
// platform delivering window-removed twice for the same window must not
// double-unbind or error.
func TestEngine_DuplicateCloseSafety(t *testing.T) {
	eng, plat, ctx := newTestEngine(t)

	plat.SetWindow(model.Window{ID: 1, Tabs: []model.Tab{{ID: 10, URL: "https://example.com"}}, Type: "normal"})
	eng.ensureInitialized(ctx)

	saved, err := eng.SaveNewSession(ctx, "Work", []model.Tab{{ID: 10, URL: "https://example.com"}}, 1, nil)
	require.NoError(t, err)

	plat.Emit(platform.Event{Kind: platform.WindowRemoved, WindowID: 1})
	require.Eventually(t, func() bool {
		return eng.reg.GetByWindow(1) == nil
	}, time.Second, 5*time.Millisecond)

	require.NotPanics(t, func() {
		plat.Emit(platform.Event{Kind: platform.WindowRemoved, WindowID: 1})
	})
	time.Sleep(testDebounce)

	row, err := eng.store.FetchByID(saved.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
}

func TestIsInternalWindow(t *testing.T) {
	require.True(t, isInternalWindow(model.Window{Tabs: []model.Tab{{URL: "chrome-extension://abcdefextid/page.html"}}}, "abcdefextid"))
	require.True(t, isInternalWindow(model.Window{Type: "popup", Tabs: []model.Tab{{URL: "https://example.com"}}}, "abcdefextid"))
	require.False(t, isInternalWindow(model.Window{Type: "normal", Tabs: []model.Tab{{URL: "https://example.com"}}}, "abcdefextid"))
}
