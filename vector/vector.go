// Package vector implements the HNSW-based approximate-nearest-neighbor
// index over record embeddings: a persisted (id -> embedding) table, an
// in-memory HNSW graph, and a stale flag that triggers a full rebuild on the
// next search after any write.
//
// The underlying graph comes from github.com/coder/hnsw (see
// hnsw_adapter.go); everything else here is an "upsert, read lazily" storage
// style generalized to a stale-index-and-rebuild pattern.
package vector

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/opendb-io/opendb/codec"
	"github.com/opendb-io/opendb/internal/obslog"
	"github.com/opendb-io/opendb/internal/obsmetrics"
	"github.com/opendb-io/opendb/opendberr"
	"github.com/opendb-io/opendb/storage"
)

// Preset names a fixed (ef_construction, max_neighbors) pair (spec §4.7).
type Preset string

const (
	HighAccuracy Preset = "high_accuracy"
	Balanced     Preset = "balanced"
	HighSpeed    Preset = "high_speed"
)

// HNSWParams are the two construction parameters fixed per database.
type HNSWParams struct {
	EfConstruction int
	MaxNeighbors   int
}

// ParamsForPreset returns the fixed parameters for a named preset, or
// Balanced's parameters if preset is unrecognized.
func ParamsForPreset(preset Preset) HNSWParams {
	switch preset {
	case HighAccuracy:
		return HNSWParams{EfConstruction: 400, MaxNeighbors: 32}
	case HighSpeed:
		return HNSWParams{EfConstruction: 100, MaxNeighbors: 8}
	default:
		return HNSWParams{EfConstruction: 200, MaxNeighbors: 16}
	}
}

// Result is one search hit: a record id and its Euclidean distance to the
// query vector.
type Result struct {
	ID       string
	Distance float32
}

var vectorLog = obslog.WithComponent("vector")

// Manager implements the vector index.
type Manager struct {
	backend   storage.Backend
	dimension int
	params    HNSWParams

	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	stale bool
}

// New constructs a vector Manager. The index starts stale so the first
// Search triggers a build from whatever embeddings are already persisted.
func New(backend storage.Backend, dimension int, params HNSWParams) *Manager {
	return &Manager{backend: backend, dimension: dimension, params: params, stale: true}
}

// PutEmbedding validates vector's length, persists it to vector_data, and
// marks the index stale.
func (m *Manager) PutEmbedding(id string, vec []float32) error {
	if len(vec) != m.dimension {
		return opendberr.Newf(opendberr.InvalidInput, "vector.PutEmbedding",
			"embedding length %d does not match configured dimension %d", len(vec), m.dimension)
	}
	if err := m.backend.Put(storage.VectorData, []byte(id), codec.EncodeVector(vec)); err != nil {
		return opendberr.Wrap(opendberr.Storage, "vector.PutEmbedding", err)
	}
	m.mu.Lock()
	m.stale = true
	m.mu.Unlock()
	obsmetrics.VectorIndexStale.Set(1)
	return nil
}

// DeleteEmbedding removes id's embedding, if any, and marks the index stale.
func (m *Manager) DeleteEmbedding(id string) error {
	if err := m.backend.Delete(storage.VectorData, []byte(id)); err != nil {
		return opendberr.Wrap(opendberr.Storage, "vector.DeleteEmbedding", err)
	}
	m.mu.Lock()
	m.stale = true
	m.mu.Unlock()
	obsmetrics.VectorIndexStale.Set(1)
	return nil
}

// Rebuild loads every persisted embedding, constructs a fresh HNSW graph,
// and atomically swaps it in. Always rebuilds, even if not stale.
//
// The write lock is held for the entire scan-and-construct phase, not just
// the final swap: otherwise two concurrent rebuilds triggered by concurrent
// stale reads could race, and whichever finishes last would win regardless
// of which one scanned the fresher data, potentially leaving stale=false
// with a graph missing an embedding already committed by the other. Holding
// the lock throughout serializes concurrent rebuilds instead.
func (m *Manager) Rebuild() error {
	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	kvs, err := m.backend.ScanPrefix(storage.VectorData, nil)
	if err != nil {
		return opendberr.Wrap(opendberr.Storage, "vector.Rebuild", err)
	}

	graph := newHNSWGraph(m.params)
	for _, kv := range kvs {
		vec, err := codec.DecodeVector(kv.Value)
		if err != nil {
			return opendberr.Wrap(opendberr.Codec, "vector.Rebuild", err)
		}
		hnswAdd(graph, string(kv.Key), vec)
	}

	m.graph = graph
	m.stale = false

	elapsed := time.Since(start)
	obsmetrics.VectorRebuildDuration.Observe(elapsed.Seconds())
	obsmetrics.VectorIndexSize.Set(float64(len(kvs)))
	obsmetrics.VectorIndexStale.Set(0)

	vectorLog.Info().
		Int("count", len(kvs)).
		Dur("duration", elapsed).
		Msg("vector index rebuilt")
	return nil
}

// Search returns the k nearest ids to query by ascending Euclidean distance,
// ties broken by ascending id (spec §4.7, §8). Rebuilds first if stale.
// query must have exactly the configured dimension.
func (m *Manager) Search(query []float32, k int) ([]Result, error) {
	if len(query) != m.dimension {
		return nil, opendberr.Newf(opendberr.InvalidInput, "vector.Search",
			"query length %d does not match configured dimension %d", len(query), m.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	graph, err := m.currentGraph()
	if err != nil {
		return nil, err
	}

	total := hnswLen(graph)
	if total == 0 {
		return nil, nil
	}

	// Over-fetch candidates from the ANN index, then re-score exactly and
	// sort, so the approximate search never violates the exact ordering
	// contract at the scales this database targets.
	want := k * 4
	if want < k+16 {
		want = k + 16
	}
	if want > total {
		want = total
	}
	candidateIDs := hnswSearch(graph, query, want)

	results := make([]Result, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		raw, err := m.backend.Get(storage.VectorData, []byte(id))
		if err != nil {
			return nil, opendberr.Wrap(opendberr.Storage, "vector.Search", err)
		}
		if raw == nil {
			continue // embedding deleted since the graph snapshot was built
		}
		vec, err := codec.DecodeVector(raw)
		if err != nil {
			return nil, opendberr.Wrap(opendberr.Codec, "vector.Search", err)
		}
		results = append(results, Result{ID: id, Distance: euclidean(query, vec)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// currentGraph returns a graph guaranteed fresh as of the call, rebuilding
// under the write lock if stale. Already-fresh searches only take the read
// lock, so they run concurrently; a rebuild in progress serializes every
// caller behind it (spec §5).
func (m *Manager) currentGraph() (*hnsw.Graph[string], error) {
	m.mu.RLock()
	if !m.stale && m.graph != nil {
		g := m.graph
		m.mu.RUnlock()
		return g, nil
	}
	m.mu.RUnlock()

	if err := m.Rebuild(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	g := m.graph
	m.mu.RUnlock()
	return g, nil
}

func euclidean(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
