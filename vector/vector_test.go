package vector

import (
	"testing"

	"github.com/opendb-io/opendb/opendberr"
	"github.com/opendb-io/opendb/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsForPreset(t *testing.T) {
	assert.Equal(t, HNSWParams{EfConstruction: 400, MaxNeighbors: 32}, ParamsForPreset(HighAccuracy))
	assert.Equal(t, HNSWParams{EfConstruction: 200, MaxNeighbors: 16}, ParamsForPreset(Balanced))
	assert.Equal(t, HNSWParams{EfConstruction: 100, MaxNeighbors: 8}, ParamsForPreset(HighSpeed))
	assert.Equal(t, HNSWParams{EfConstruction: 200, MaxNeighbors: 16}, ParamsForPreset("bogus"))
}

func TestManager_PutEmbedding_RejectsWrongDimension(t *testing.T) {
	m := New(storage.NewMemBackend(), 3, ParamsForPreset(Balanced))
	err := m.PutEmbedding("m1", []float32{1, 2})
	require.Error(t, err)
	assert.True(t, opendberr.Is(err, opendberr.InvalidInput))
}

func TestManager_Search_RejectsWrongQueryDimension(t *testing.T) {
	m := New(storage.NewMemBackend(), 3, ParamsForPreset(Balanced))
	_, err := m.Search([]float32{1, 2}, 1)
	require.Error(t, err)
	assert.True(t, opendberr.Is(err, opendberr.InvalidInput))
}

func TestManager_Search_EmptyIndexReturnsNoResults(t *testing.T) {
	m := New(storage.NewMemBackend(), 3, ParamsForPreset(Balanced))
	results, err := m.Search([]float32{1, 2, 3}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestManager_Search_FindsExactMatchFirst(t *testing.T) {
	m := New(storage.NewMemBackend(), 3, ParamsForPreset(Balanced))
	require.NoError(t, m.PutEmbedding("m1", []float32{1, 0, 0}))
	require.NoError(t, m.PutEmbedding("m2", []float32{0, 1, 0}))
	require.NoError(t, m.PutEmbedding("m3", []float32{0, 0, 1}))

	results, err := m.Search([]float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m2", results[0].ID)
	assert.Equal(t, float32(0), results[0].Distance)
}

func TestManager_Search_OrdersByDistanceThenID(t *testing.T) {
	m := New(storage.NewMemBackend(), 2, ParamsForPreset(Balanced))
	require.NoError(t, m.PutEmbedding("far", []float32{10, 10}))
	require.NoError(t, m.PutEmbedding("near-b", []float32{1, 0}))
	require.NoError(t, m.PutEmbedding("near-a", []float32{1, 0}))

	results, err := m.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "near-a", results[0].ID)
	assert.Equal(t, "near-b", results[1].ID)
	assert.Equal(t, "far", results[2].ID)
}

func TestManager_DeleteEmbedding_RemovesFromSearch(t *testing.T) {
	m := New(storage.NewMemBackend(), 2, ParamsForPreset(Balanced))
	require.NoError(t, m.PutEmbedding("m1", []float32{1, 0}))
	require.NoError(t, m.PutEmbedding("m2", []float32{5, 5}))

	require.NoError(t, m.DeleteEmbedding("m1"))
	require.NoError(t, m.Rebuild())

	results, err := m.Search([]float32{0, 0}, 10)
	require.NoError(t, err)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	assert.ElementsMatch(t, []string{"m2"}, ids)
}

func TestManager_Rebuild_SetIDsMatchNonEmptyEmbeddings(t *testing.T) {
	backend := storage.NewMemBackend()
	m := New(backend, 2, ParamsForPreset(Balanced))

	require.NoError(t, m.PutEmbedding("a", []float32{1, 1}))
	require.NoError(t, m.PutEmbedding("b", []float32{2, 2}))
	require.NoError(t, m.PutEmbedding("c", []float32{3, 3}))
	require.NoError(t, m.DeleteEmbedding("b"))

	require.NoError(t, m.Rebuild())
	results, err := m.Search([]float32{0, 0}, 10)
	require.NoError(t, err)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	assert.ElementsMatch(t, []string{"a", "c"}, ids)
}
