package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacekeeper/spacekeeperd/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_CreateFetchUpdateRemove(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Create(Draft{
		Name:        "Work",
		SessionHash: 42,
		Tabs:        []model.Tab{{URL: "https://example.com"}},
		LastAccess:  time.Unix(1000, 0),
	})
	require.NoError(t, err)
	require.True(t, created.ID.Valid())

	fetched, err := s.FetchByID(created.ID)
	require.NoError(t, err)
	require.Equal(t, "Work", fetched.Name)
	require.Equal(t, uint32(42), fetched.SessionHash)

	byName, err := s.FetchByName("wORK")
	require.NoError(t, err)
	require.NotNil(t, byName)
	require.Equal(t, created.ID, byName.ID)

	fetched.Name = "Work Renamed"
	updated, err := s.Update(fetched)
	require.NoError(t, err)
	require.Equal(t, "Work Renamed", updated.Name)

	ok, err := s.Remove(created.ID)
	require.NoError(t, err)
	require.True(t, ok)

	gone, err := s.FetchByID(created.ID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestStore_WindowIDNeverPersisted(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Create(Draft{Name: "Home", SessionHash: 1})
	require.NoError(t, err)

	created.WindowID = 7
	updated, err := s.Update(created)
	require.NoError(t, err)
	require.Equal(t, model.WindowID(0), updated.WindowID)

	fetched, err := s.FetchByID(created.ID)
	require.NoError(t, err)
	require.Equal(t, model.WindowID(0), fetched.WindowID)
}

func TestStore_ExtensionVersion(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetExtensionVersion()
	require.NoError(t, err)
	require.Equal(t, "", v)

	require.NoError(t, s.SetExtensionVersion("1.2.3"))

	v, err = s.GetExtensionVersion()
	require.NoError(t, err)
	require.Equal(t, "1.2.3", v)
}

func TestStore_FetchAllReturnsEveryRow(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(Draft{Name: "A", SessionHash: 1})
	require.NoError(t, err)
	_, err = s.Create(Draft{Name: "B", SessionHash: 2})
	require.NoError(t, err)

	all, err := s.FetchAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
}
