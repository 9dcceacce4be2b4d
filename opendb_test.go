package opendb

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/opendb-io/opendb/graph"
	"github.com/opendb-io/opendb/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, opts Options) *Database {
	t.Helper()
	db, err := OpenWithOptions(t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// Scenario 1: KV put/get/delete round-trip.
func TestScenario_KVRoundTrip(t *testing.T) {
	db := openTestDB(t, Options{VectorDimension: 3})

	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	v, err = db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, db.Delete([]byte("k")))
	v, err = db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

// Scenario 2: insert a memory, reopen with the same dimension, content survives.
func TestScenario_InsertMemory_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenWithOptions(dir, Options{VectorDimension: 3})
	require.NoError(t, err)

	require.NoError(t, db.InsertMemory(records.Record{
		ID: "m1", Content: "hello", Embedding: []float32{0.1, 0.2, 0.3},
	}))
	require.NoError(t, db.Close())

	reopened, err := OpenWithOptions(dir, Options{VectorDimension: 3})
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.GetMemory("m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Content)
}

// Scenario 3: nearest neighbor of m2's own embedding is m2 at distance 0.
func TestScenario_SearchSimilar_ExactMatch(t *testing.T) {
	db := openTestDB(t, Options{VectorDimension: 3})

	require.NoError(t, db.InsertMemory(records.Record{ID: "m1", Embedding: []float32{1, 0, 0}}))
	require.NoError(t, db.InsertMemory(records.Record{ID: "m2", Embedding: []float32{0, 1, 0}}))
	require.NoError(t, db.InsertMemory(records.Record{ID: "m3", Embedding: []float32{0, 0, 1}}))

	results, err := db.SearchSimilar([]float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m2", results[0].ID)
	assert.Equal(t, float32(0), results[0].Distance)
}

// Scenario 4: re-linking the same triple updates rather than duplicates.
func TestScenario_RelinkUpdatesInPlace(t *testing.T) {
	db := openTestDB(t, Options{VectorDimension: 3})

	require.NoError(t, db.Link("a", "b", "rel", graph.LinkOptions{}))
	require.NoError(t, db.Link("a", "b", "rel", graph.LinkOptions{Weight: 2, HasWeight: true}))

	related, err := db.GetRelated("a", "rel")
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, 2.0, related[0].Weight)
}

// Scenario 5: a committed transaction conflicting with a concurrent direct
// write aborts, and the facade observes the direct write's value.
func TestScenario_TransactionConflict(t *testing.T) {
	db := openTestDB(t, Options{VectorDimension: 3})

	require.NoError(t, db.Put([]byte("k"), []byte("0")))

	h, err := db.BeginTransaction()
	require.NoError(t, err)
	_, err = h.Get("default", []byte("k"))
	require.NoError(t, err)
	require.NoError(t, h.Put("default", []byte("k"), []byte("1")))

	require.NoError(t, db.Put([]byte("k"), []byte("2")))

	err = h.Commit()
	assert.Error(t, err)

	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)
}

// Scenario 6: 100 memories, search for 10 nearest, sorted ascending.
func TestScenario_SearchSimilar_TopK(t *testing.T) {
	db := openTestDB(t, Options{VectorDimension: 4})

	for i := 0; i < 100; i++ {
		emb := make([]float32, 4)
		emb[0] = float32(i)
		require.NoError(t, db.InsertMemory(records.Record{ID: idFor(i), Embedding: emb}))
	}

	results, err := db.SearchSimilar([]float32{0, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 10)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func idFor(i int) string {
	return fmt.Sprintf("m%03d", i)
}

func TestOpen_RejectsMismatchedDimensionOnReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenWithOptions(dir, Options{VectorDimension: 3})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = OpenWithOptions(dir, Options{VectorDimension: 8})
	assert.Error(t, err)
}

func TestOpen_SecondProcessCannotAcquireLock(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenWithOptions(dir, Options{VectorDimension: 3})
	require.NoError(t, err)
	defer db.Close()

	_, err = OpenWithOptions(dir, Options{VectorDimension: 3})
	assert.Error(t, err)
}

func TestDatabase_Backup(t *testing.T) {
	db := openTestDB(t, Options{VectorDimension: 3})
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.Flush())

	dest := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, db.Backup(dest))
}
