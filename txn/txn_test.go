package txn

import (
	"testing"

	"github.com/opendb-io/opendb/opendberr"
	"github.com/opendb-io/opendb/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_CommitAppliesWrites(t *testing.T) {
	backend := storage.NewMemBackend()
	mgr := New(backend)

	h, err := mgr.Begin()
	require.NoError(t, err)
	require.NoError(t, h.Put(storage.Default, []byte("k"), []byte("v")))
	require.NoError(t, h.Commit())

	v, err := backend.Get(storage.Default, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestHandle_RollbackDiscardsWrites(t *testing.T) {
	backend := storage.NewMemBackend()
	mgr := New(backend)

	h, err := mgr.Begin()
	require.NoError(t, err)
	require.NoError(t, h.Put(storage.Default, []byte("k"), []byte("v")))
	require.NoError(t, h.Rollback())

	v, err := backend.Get(storage.Default, []byte("k"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestHandle_UseAfterCommitFails(t *testing.T) {
	backend := storage.NewMemBackend()
	mgr := New(backend)

	h, err := mgr.Begin()
	require.NoError(t, err)
	require.NoError(t, h.Commit())

	err = h.Put(storage.Default, []byte("k"), []byte("v"))
	require.Error(t, err)
	assert.True(t, opendberr.Is(err, opendberr.Transaction))

	_, err = h.Get(storage.Default, []byte("k"))
	assert.Error(t, err)

	err = h.Commit()
	assert.Error(t, err)
}

func TestHandle_RollbackAfterCommitIsNoop(t *testing.T) {
	backend := storage.NewMemBackend()
	mgr := New(backend)

	h, err := mgr.Begin()
	require.NoError(t, err)
	require.NoError(t, h.Commit())
	assert.NoError(t, h.Rollback())
}

func TestManager_ActiveCount_TracksOpenHandles(t *testing.T) {
	backend := storage.NewMemBackend()
	mgr := New(backend)

	h1, err := mgr.Begin()
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.ActiveCount())

	h2, err := mgr.Begin()
	require.NoError(t, err)
	assert.Equal(t, 2, mgr.ActiveCount())

	require.NoError(t, h1.Commit())
	assert.Equal(t, 1, mgr.ActiveCount())

	require.NoError(t, h2.Rollback())
	assert.Equal(t, 0, mgr.ActiveCount())
}

func TestHandle_CommitConflict(t *testing.T) {
	backend := storage.NewMemBackend()
	mgr := New(backend)
	require.NoError(t, backend.Put(storage.Default, []byte("k"), []byte("0")))

	h, err := mgr.Begin()
	require.NoError(t, err)
	_, err = h.Get(storage.Default, []byte("k"))
	require.NoError(t, err)
	require.NoError(t, h.Put(storage.Default, []byte("k"), []byte("1")))

	require.NoError(t, backend.Put(storage.Default, []byte("k"), []byte("2")))

	err = h.Commit()
	require.Error(t, err)
	assert.True(t, opendberr.Is(err, opendberr.Transaction))

	v, err := backend.Get(storage.Default, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)
}
