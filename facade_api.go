package opendb

import (
	"github.com/opendb-io/opendb/graph"
	"github.com/opendb-io/opendb/kv"
	"github.com/opendb-io/opendb/records"
	"github.com/opendb-io/opendb/txn"
	"github.com/opendb-io/opendb/vector"
)

// The methods below delegate straight to the corresponding manager and exist
// only so the facade's method set mirrors the public surface named in spec
// §6 one-to-one; db.KV, db.Records, db.Graph, db.Vector, and db.Txn remain
// available directly for callers who prefer the namespaced form.

// Put writes key/value to the byte KV store.
func (db *Database) Put(key, value []byte) error { return db.KV.Put(key, value) }

// Get reads key from the byte KV store.
func (db *Database) Get(key []byte) ([]byte, error) { return db.KV.Get(key) }

// Delete removes key from the byte KV store.
func (db *Database) Delete(key []byte) error { return db.KV.Delete(key) }

// Exists reports whether key is present in the byte KV store.
func (db *Database) Exists(key []byte) (bool, error) { return db.KV.Exists(key) }

// ScanPrefix lists every byte KV entry whose key starts with prefix.
func (db *Database) ScanPrefix(prefix []byte) ([]kv.Pair, error) { return db.KV.ScanPrefix(prefix) }

// InsertMemory upserts a memory record.
func (db *Database) InsertMemory(r records.Record) error { return db.Records.Insert(r) }

// GetMemory returns a memory record by id.
func (db *Database) GetMemory(id string) (records.Record, bool, error) { return db.Records.Get(id) }

// DeleteMemory removes a memory record by id.
func (db *Database) DeleteMemory(id string) error { return db.Records.Delete(id) }

// ListMemoryIDs returns every stored memory record id.
func (db *Database) ListMemoryIDs() ([]string, error) { return db.Records.ListIDs() }

// ListMemories returns every stored memory record.
func (db *Database) ListMemories() ([]records.Record, error) { return db.Records.List() }

// Link creates or updates a directed, labeled edge.
func (db *Database) Link(from, to, relation string, opts graph.LinkOptions) error {
	return db.Graph.Link(from, to, relation, opts)
}

// Unlink removes a directed, labeled edge.
func (db *Database) Unlink(from, to, relation string) error {
	return db.Graph.Unlink(from, to, relation)
}

// GetRelated returns the edges from id via relation.
func (db *Database) GetRelated(id, relation string) ([]graph.Edge, error) {
	return db.Graph.GetRelated(id, relation)
}

// GetOutgoing returns every edge originating at id.
func (db *Database) GetOutgoing(id string) ([]graph.Edge, error) { return db.Graph.GetOutgoing(id) }

// GetIncoming returns every edge terminating at id.
func (db *Database) GetIncoming(id string) ([]graph.Edge, error) { return db.Graph.GetIncoming(id) }

// SearchSimilar returns the k nearest memory ids to query by embedding distance.
func (db *Database) SearchSimilar(query []float32, k int) ([]vector.Result, error) {
	return db.Vector.Search(query, k)
}

// RebuildVectorIndex forces an immediate HNSW rebuild, bypassing the
// rebuild-on-next-search laziness.
func (db *Database) RebuildVectorIndex() error { return db.Vector.Rebuild() }

// BeginTransaction starts a new transaction handle over the backend.
func (db *Database) BeginTransaction() (*txn.Handle, error) { return db.Txn.Begin() }
