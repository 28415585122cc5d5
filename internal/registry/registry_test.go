package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacekeeper/spacekeeperd/internal/model"
)

func TestAddSafely_RejectsDuplicateID(t *testing.T) {
	r := New(nil, nil)
	require.True(t, r.AddSafely(&model.Session{ID: 1, WindowID: 10}))
	require.False(t, r.AddSafely(&model.Session{ID: 1, WindowID: 20}))
	require.Equal(t, 1, r.Len())
}

func TestAddSafely_RejectsDuplicateWindow(t *testing.T) {
	r := New(nil, nil)
	require.True(t, r.AddSafely(&model.Session{WindowID: 10}))
	require.False(t, r.AddSafely(&model.Session{WindowID: 10}))
	require.Equal(t, 1, r.Len())
}

func TestRemoveByID_Splices(t *testing.T) {
	r := New(nil, nil)
	r.AddSafely(&model.Session{ID: 1, WindowID: 10})
	r.AddSafely(&model.Session{ID: 2, WindowID: 20})
	r.AddSafely(&model.Session{ID: 3, WindowID: 30})

	require.True(t, r.RemoveByID(2))
	require.Equal(t, 2, r.Len())
	require.Nil(t, r.GetByID(2))
	require.NotNil(t, r.GetByID(1))
	require.NotNil(t, r.GetByID(3))
	require.NotNil(t, r.GetByWindow(30))
}

func TestBindWindow_OnlyOneEntryPerWindow(t *testing.T) {
	r := New(nil, nil)
	r.AddSafely(&model.Session{ID: 1})
	r.AddSafely(&model.Session{ID: 2})

	require.NoError(t, r.BindWindow(1, 100))
	// Simulate bind() evicting session 1's binding before rebinding window 100 to session 2.
	r.ClearWindowID(1)
	require.NoError(t, r.BindWindow(2, 100))

	s1 := r.GetByID(1)
	require.False(t, s1.WindowID.Valid())
	s2 := r.GetByID(2)
	require.True(t, s2.WindowID.Valid())
	require.Equal(t, model.WindowID(100), s2.WindowID)

	bound := r.GetByWindow(100)
	require.Equal(t, model.SessionID(2), bound.ID)
}

func TestPatchFromStore_PreservesWindowID(t *testing.T) {
	r := New(nil, nil)
	r.AddSafely(&model.Session{ID: 1, WindowID: 5, Name: "old"})

	patched := r.PatchFromStore(&model.Session{ID: 1, Name: "new"})
	require.Equal(t, "new", patched.Name)
	require.Equal(t, model.WindowID(5), patched.WindowID)

	// In-memory entry itself was patched, not just the returned copy.
	require.Equal(t, "new", r.GetByID(1).Name)
}

func TestPatchFromStore_UnknownIDLogsAndReturnsUncached(t *testing.T) {
	r := New(nil, nil)
	row := &model.Session{ID: 99, Name: "ghost"}
	got := r.PatchFromStore(row)
	require.Same(t, row, got)
}

func TestGetAll_ReturnsDefensiveCopies(t *testing.T) {
	r := New(nil, nil)
	r.AddSafely(&model.Session{ID: 1, Tabs: []model.Tab{{URL: "https://a"}}})

	all := r.GetAll()
	all[0].Tabs[0].URL = "mutated"

	fresh := r.GetByID(1)
	require.Equal(t, "https://a", fresh.Tabs[0].URL)
}
