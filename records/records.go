// Package records implements the structured memory record store: CRUD plus
// listing over the "records" partition, with a write-through record cache
// and vector-index staleness hooks on every mutation.
//
// Follows a per-entity CRUD shape (Insert as upsert, Get, Delete, ListIDs,
// List) for one entity (Record), with an explicit codec round-trip and its
// own cache layer on top.
package records

import (
	"github.com/opendb-io/opendb/cache"
	"github.com/opendb-io/opendb/codec"
	"github.com/opendb-io/opendb/opendberr"
	"github.com/opendb-io/opendb/storage"
)

// Record is a structured memory artifact (spec §3). Embedding is either
// empty or exactly VectorDimension entries long, enforced at Insert.
type Record struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Importance float64           `json:"importance"`
	Timestamp  int64             `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// EmbeddingIndex is the subset of vector.Manager records depends on: writing
// or clearing a record's embedding also marks the vector index stale, so
// there is exactly one place that tracks staleness (spec §4.7).
type EmbeddingIndex interface {
	PutEmbedding(id string, vector []float32) error
	DeleteEmbedding(id string) error
}

// Manager implements the records store.
type Manager struct {
	backend   storage.Backend
	cache     *cache.Cache[string, Record]
	vectorIdx EmbeddingIndex
	dimension int
}

// New constructs a records Manager. dimension is the database's configured
// vector_dimension (spec §4.9); cacheCapacity is record_cache_size.
func New(backend storage.Backend, vectorIdx EmbeddingIndex, dimension, cacheCapacity int) *Manager {
	return &Manager{
		backend:   backend,
		cache:     cache.New[string, Record]("records", cacheCapacity),
		vectorIdx: vectorIdx,
		dimension: dimension,
	}
}

// Insert validates and upserts a record (spec §4.5). id must be non-empty;
// embedding must be empty or exactly dimension entries. On success the
// record cache is updated and the vector index's embedding for this id is
// written (or cleared, if embedding is now empty) and marked stale.
func (m *Manager) Insert(r Record) error {
	if r.ID == "" {
		return opendberr.New(opendberr.InvalidInput, "records.Insert", "id must not be empty")
	}
	if len(r.Embedding) != 0 && len(r.Embedding) != m.dimension {
		return opendberr.Newf(opendberr.InvalidInput, "records.Insert",
			"embedding length %d does not match configured dimension %d", len(r.Embedding), m.dimension)
	}

	encoded, err := codec.EncodeJSON(r)
	if err != nil {
		return opendberr.Wrap(opendberr.Codec, "records.Insert", err)
	}
	if err := m.backend.Put(storage.Records, []byte(r.ID), encoded); err != nil {
		return opendberr.Wrap(opendberr.Storage, "records.Insert", err)
	}

	m.cache.Insert(r.ID, r)

	if len(r.Embedding) != 0 {
		if err := m.vectorIdx.PutEmbedding(r.ID, r.Embedding); err != nil {
			return opendberr.Wrap(opendberr.Vector, "records.Insert", err)
		}
	} else if err := m.vectorIdx.DeleteEmbedding(r.ID); err != nil {
		return opendberr.Wrap(opendberr.Vector, "records.Insert", err)
	}
	return nil
}

// Get returns the record for id, or (Record{}, false, nil) if absent.
// Cache-first, decode-on-miss, populates the cache on a backend hit.
func (m *Manager) Get(id string) (Record, bool, error) {
	if r, ok := m.cache.Get(id); ok {
		return r, true, nil
	}
	raw, err := m.backend.Get(storage.Records, []byte(id))
	if err != nil {
		return Record{}, false, opendberr.Wrap(opendberr.Storage, "records.Get", err)
	}
	if raw == nil {
		return Record{}, false, nil
	}
	r, err := codec.DecodeJSON[Record](raw)
	if err != nil {
		return Record{}, false, opendberr.Wrap(opendberr.Codec, "records.Get", err)
	}
	m.cache.Insert(id, r)
	return r, true, nil
}

// Delete removes a record, invalidates its cache entry, and clears its
// embedding from the vector index (marking it stale). Graph edges
// referencing id are intentionally left untouched (spec §4.5, §9).
func (m *Manager) Delete(id string) error {
	if err := m.backend.Delete(storage.Records, []byte(id)); err != nil {
		return opendberr.Wrap(opendberr.Storage, "records.Delete", err)
	}
	m.cache.Invalidate(id)
	if err := m.vectorIdx.DeleteEmbedding(id); err != nil {
		return opendberr.Wrap(opendberr.Vector, "records.Delete", err)
	}
	return nil
}

// ListIDs returns every record id via a prefix scan; no cache involved.
func (m *Manager) ListIDs() ([]string, error) {
	kvs, err := m.backend.ScanPrefix(storage.Records, nil)
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Storage, "records.ListIDs", err)
	}
	ids := make([]string, len(kvs))
	for i, kv := range kvs {
		ids[i] = string(kv.Key)
	}
	return ids, nil
}

// List returns every decoded record via a prefix scan; no cache population.
func (m *Manager) List() ([]Record, error) {
	kvs, err := m.backend.ScanPrefix(storage.Records, nil)
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Storage, "records.List", err)
	}
	out := make([]Record, 0, len(kvs))
	for _, kv := range kvs {
		r, err := codec.DecodeJSON[Record](kv.Value)
		if err != nil {
			return nil, opendberr.Wrap(opendberr.Codec, "records.List", err)
		}
		out = append(out, r)
	}
	return out, nil
}
