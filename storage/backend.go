// Package storage defines the abstract, column-family-partitioned ordered
// key-value contract OpenDB is built on, and provides two implementations: a
// BoltDB-backed Backend for durable, on-disk use, and an in-memory reference
// Backend for tests. Both satisfy the same interface and the same
// snapshot-isolated, optimistic-transaction contract.
//
// Generalizes a fixed set of typed buckets (nodes, services, ...) to named,
// caller-chosen partitions holding opaque keys and values, plus an explicit
// transaction handle with its own read/write buffer layered over a
// point-in-time snapshot: the underlying db.Update/db.View calls are
// pessimistic and single-writer, and Transaction adds optimistic conflict
// detection on top.
package storage

import "github.com/opendb-io/opendb/opendberr"

// Partition names, fixed per spec §3.
const (
	Default       = "default"
	Records       = "records"
	GraphForward  = "graph_forward"
	GraphBackward = "graph_backward"
	VectorData    = "vector_data"
	VectorIndex   = "vector_index"
	Metadata      = "metadata"
)

// Partitions lists every partition a Backend must create on open.
var Partitions = []string{Default, Records, GraphForward, GraphBackward, VectorData, VectorIndex, Metadata}

// KV is a single scanned entry.
type KV struct {
	Key   []byte
	Value []byte
}

// Reader is the read-only subset of the backend contract, satisfied by both
// a Backend and a Snapshot.
type Reader interface {
	// Get returns (nil, nil) if the key is absent.
	Get(cf string, key []byte) ([]byte, error)
	Exists(cf string, key []byte) (bool, error)
	// ScanPrefix returns matching entries in lexicographic key order.
	ScanPrefix(cf string, prefix []byte) ([]KV, error)
}

// Snapshot is a read-only view consistent with one instant in time. Callers
// must Close it when done to release backend resources.
type Snapshot interface {
	Reader
	Close() error
}

// Transaction is a write buffer layered over a Backend-provided snapshot
// (spec §4.8). Reads see the transaction's own prior writes (including
// tombstones) before falling through to the snapshot. No write is visible to
// the backend until Commit succeeds.
type Transaction interface {
	Reader
	Put(cf string, key, value []byte) error
	Delete(cf string, key []byte) error
	// Commit atomically applies the buffer. Fails with an opendberr.Transaction
	// error if a key the transaction read or wrote changed since the
	// snapshot was taken; the buffer is discarded either way.
	Commit() error
	// Rollback discards the buffer. Always succeeds. Safe to call after
	// Commit (no-op) and safe to omit if the handle is simply dropped.
	Rollback() error
}

// Backend is the abstract, ordered, column-family-partitioned key-value
// contract every OpenDB manager is built on.
type Backend interface {
	Reader
	Put(cf string, key, value []byte) error
	// Delete is idempotent: succeeds even if the key is absent.
	Delete(cf string, key []byte) error
	BeginTransaction() (Transaction, error)
	// Flush forces durable persistence up to the call.
	Flush() error
	Snapshot() (Snapshot, error)
	Close() error
}

func errStorage(op string, err error) error {
	return opendberr.Wrap(opendberr.Storage, op, err)
}

func errTxn(op string, err error) error {
	return opendberr.Wrap(opendberr.Transaction, op, err)
}

// compositeKey joins a partition and key into one buffer-map key. Partition
// names never contain NUL, so this cannot collide across partitions.
func compositeKey(cf string, key []byte) string {
	return cf + "\x00" + string(key)
}

// writeEntry is a buffered mutation: a put (tombstone=false) or a delete
// (tombstone=true, value ignored).
type writeEntry struct {
	tombstone bool
	value     []byte
}

// txBuffer is the write buffer + read/write base-value set shared by both
// backend implementations' Transaction. On first touch of a key (by Get,
// Put, or Delete) it records the key's value as observed in the snapshot;
// at commit time, the backend re-reads each touched key from live state and
// aborts with a conflict if any differs from its recorded base.
type txBuffer struct {
	snap   Snapshot
	base   map[string]baseValue
	writes map[string]writeEntry
	done   bool // true after Commit or Rollback
}

type baseValue struct {
	cf    string
	key   []byte
	value []byte
	found bool
}

func newTxBuffer(snap Snapshot) *txBuffer {
	return &txBuffer{
		snap:   snap,
		base:   make(map[string]baseValue),
		writes: make(map[string]writeEntry),
	}
}

func (b *txBuffer) ensureBase(cf string, key []byte) error {
	ck := compositeKey(cf, key)
	if _, ok := b.base[ck]; ok {
		return nil
	}
	val, err := b.snap.Get(cf, key)
	if err != nil {
		return err
	}
	b.base[ck] = baseValue{cf: cf, key: key, value: val, found: val != nil}
	return nil
}

// get returns the buffered value for (cf,key) if this transaction has
// written or deleted it, otherwise reads through the snapshot.
func (b *txBuffer) get(cf string, key []byte) ([]byte, error) {
	ck := compositeKey(cf, key)
	if w, ok := b.writes[ck]; ok {
		if w.tombstone {
			return nil, nil
		}
		return w.value, nil
	}
	if err := b.ensureBase(cf, key); err != nil {
		return nil, err
	}
	return b.base[ck].value, nil
}

func (b *txBuffer) put(cf string, key, value []byte) error {
	if err := b.ensureBase(cf, key); err != nil {
		return err
	}
	b.writes[compositeKey(cf, key)] = writeEntry{value: value}
	return nil
}

func (b *txBuffer) delete(cf string, key []byte) error {
	if err := b.ensureBase(cf, key); err != nil {
		return err
	}
	b.writes[compositeKey(cf, key)] = writeEntry{tombstone: true}
	return nil
}
