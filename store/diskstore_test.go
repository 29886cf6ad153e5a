package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStorePushReadOffloadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk-store")
	s, err := NewDiskStore(path, 4, 4)
	require.NoError(t, err)

	require.NoError(t, s.Push([]byte{1, 2, 3, 4}))
	require.NoError(t, s.Push([]byte{5, 6, 7, 8}))

	ok, err := s.TryOffload()
	require.NoError(t, err)
	assert.True(t, ok)

	// A second offload is a no-op, not an error.
	ok, err = s.TryOffload()
	require.NoError(t, err)
	assert.False(t, ok)

	e, err := s.ReadAt(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7, 8}, e)
}

func TestDiskStoreOpenExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk-store")
	s, err := NewDiskStore(path, 4, 4)
	require.NoError(t, err)
	require.NoError(t, s.Push([]byte{9, 9, 9, 9}))
	_, err = s.TryOffload()
	require.NoError(t, err)

	reopened, err := OpenDiskStore(path, 4, 4, 1)
	require.NoError(t, err)
	e, err := reopened.ReadAt(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 9, 9}, e)
}

func TestDiskStoreOutOfBoundsAndCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk-store")
	s, err := NewDiskStore(path, 1, 4)
	require.NoError(t, err)
	require.NoError(t, s.Push([]byte{1, 1, 1, 1}))

	err = s.Push([]byte{2, 2, 2, 2})
	require.Error(t, err)
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, KindInsufficientCapacity, storeErr.Kind)

	_, err = s.ReadAt(5)
	require.Error(t, err)
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, KindOutOfBounds, storeErr.Kind)
}
