package storage

import (
	"sort"
	"strings"
	"sync"

	"github.com/opendb-io/opendb/opendberr"
)

// MemBackend is an in-memory Backend satisfying the same contract as the
// BoltDB-backed Backend modulo durability (spec §4.1): no write-ahead log,
// nothing survives process exit. Used by the test suite: the manager tests
// run against it, and the storage tests run against both backends.
type MemBackend struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // cf -> key -> value
}

// NewMemBackend returns a ready-to-use in-memory backend with every
// partition pre-created.
func NewMemBackend() *MemBackend {
	b := &MemBackend{data: make(map[string]map[string][]byte)}
	for _, cf := range Partitions {
		b.data[cf] = make(map[string][]byte)
	}
	return b
}

func (b *MemBackend) bucket(cf string) map[string][]byte {
	m, ok := b.data[cf]
	if !ok {
		m = make(map[string][]byte)
		b.data[cf] = m
	}
	return m
}

func (b *MemBackend) Get(cf string, key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.bucket(cf)[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (b *MemBackend) Exists(cf string, key []byte) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.bucket(cf)[string(key)]
	return ok, nil
}

func (b *MemBackend) ScanPrefix(cf string, prefix []byte) ([]KV, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return scanBucket(b.bucket(cf), prefix), nil
}

func scanBucket(bucket map[string][]byte, prefix []byte) []KV {
	p := string(prefix)
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]KV, 0, len(keys))
	for _, k := range keys {
		v := bucket[k]
		vCopy := make([]byte, len(v))
		copy(vCopy, v)
		out = append(out, KV{Key: []byte(k), Value: vCopy})
	}
	return out
}

func (b *MemBackend) Put(cf string, key, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	b.bucket(cf)[string(key)] = v
	return nil
}

func (b *MemBackend) Delete(cf string, key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bucket(cf), string(key))
	return nil
}

func (b *MemBackend) Flush() error { return nil }

func (b *MemBackend) Close() error { return nil }

// memSnapshot is a point-in-time copy-on-read view: since MemBackend already
// copies on every Get/ScanPrefix, a snapshot just needs to pin a deep copy of
// the backing maps taken under the lock.
type memSnapshot struct {
	data map[string]map[string][]byte
}

func (b *MemBackend) Snapshot() (Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cloned := make(map[string]map[string][]byte, len(b.data))
	for cf, bucket := range b.data {
		cp := make(map[string][]byte, len(bucket))
		for k, v := range bucket {
			vv := make([]byte, len(v))
			copy(vv, v)
			cp[k] = vv
		}
		cloned[cf] = cp
	}
	return &memSnapshot{data: cloned}, nil
}

func (s *memSnapshot) Get(cf string, key []byte) ([]byte, error) {
	v, ok := s.data[cf][string(key)]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (s *memSnapshot) Exists(cf string, key []byte) (bool, error) {
	_, ok := s.data[cf][string(key)]
	return ok, nil
}

func (s *memSnapshot) ScanPrefix(cf string, prefix []byte) ([]KV, error) {
	return scanBucket(s.data[cf], prefix), nil
}

func (s *memSnapshot) Close() error { return nil }

// memTransaction layers txBuffer's optimistic write buffer over a memSnapshot.
type memTransaction struct {
	backend *MemBackend
	buf     *txBuffer
}

func (b *MemBackend) BeginTransaction() (Transaction, error) {
	snap, err := b.Snapshot()
	if err != nil {
		return nil, errTxn("storage.BeginTransaction", err)
	}
	return &memTransaction{backend: b, buf: newTxBuffer(snap)}, nil
}

func (t *memTransaction) Get(cf string, key []byte) ([]byte, error) {
	return t.buf.get(cf, key)
}

func (t *memTransaction) Exists(cf string, key []byte) (bool, error) {
	v, err := t.buf.get(cf, key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

func (t *memTransaction) ScanPrefix(cf string, prefix []byte) ([]KV, error) {
	return nil, opendberr.New(opendberr.Transaction, "storage.Transaction.ScanPrefix", "scan_prefix is not part of the transaction contract")
}

func (t *memTransaction) Put(cf string, key, value []byte) error {
	return t.buf.put(cf, key, value)
}

func (t *memTransaction) Delete(cf string, key []byte) error {
	return t.buf.delete(cf, key)
}

func (t *memTransaction) Commit() error {
	if t.buf.done {
		return opendberr.New(opendberr.Transaction, "storage.Transaction.Commit", "transaction already finalized")
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()

	for _, base := range t.buf.base {
		current, ok := t.backend.bucket(base.cf)[string(base.key)]
		currentFound := ok
		if currentFound != base.found || (currentFound && string(current) != string(base.value)) {
			t.buf.done = true
			return opendberr.New(opendberr.Transaction, "storage.Transaction.Commit", "conflict: key modified since snapshot")
		}
	}

	for ck, w := range t.buf.writes {
		base := t.buf.base[ck]
		bucket := t.backend.bucket(base.cf)
		if w.tombstone {
			delete(bucket, string(base.key))
		} else {
			v := make([]byte, len(w.value))
			copy(v, w.value)
			bucket[string(base.key)] = v
		}
	}
	t.buf.done = true
	return nil
}

func (t *memTransaction) Rollback() error {
	t.buf.done = true
	return nil
}
