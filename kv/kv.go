// Package kv implements the byte key-value facade over storage.Backend with
// write-through caching (spec §4.4).
package kv

import (
	"github.com/opendb-io/opendb/cache"
	"github.com/opendb-io/opendb/opendberr"
	"github.com/opendb-io/opendb/storage"
)

// Store is the byte KV facade. All operations act on the "default"
// partition.
type Store struct {
	backend storage.Backend
	cache   *cache.Cache[string, []byte]
}

// New wraps backend with a write-through cache of the given capacity (0
// disables caching, per spec §4.9 kv_cache_size=0).
func New(backend storage.Backend, cacheCapacity int) *Store {
	return &Store{backend: backend, cache: cache.New[string, []byte]("kv", cacheCapacity)}
}

// Put writes to the default partition, then caches the value. The cache is
// only updated after the backend write succeeds.
func (s *Store) Put(key, value []byte) error {
	if err := s.backend.Put(storage.Default, key, value); err != nil {
		return opendberr.Wrap(opendberr.Storage, "kv.Put", err)
	}
	s.cache.Insert(string(key), value)
	return nil
}

// Get checks the cache first; on a miss it reads through the backend and
// populates the cache only if the value is present.
func (s *Store) Get(key []byte) ([]byte, error) {
	if v, ok := s.cache.Get(string(key)); ok {
		return v, nil
	}
	v, err := s.backend.Get(storage.Default, key)
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Storage, "kv.Get", err)
	}
	if v != nil {
		s.cache.Insert(string(key), v)
	}
	return v, nil
}

// Delete removes key from the backend and invalidates its cache entry.
// Succeeds even if the key was absent.
func (s *Store) Delete(key []byte) error {
	if err := s.backend.Delete(storage.Default, key); err != nil {
		return opendberr.Wrap(opendberr.Storage, "kv.Delete", err)
	}
	s.cache.Invalidate(string(key))
	return nil
}

// Exists answers on presence only, using the same read path as Get; a cache
// hit short-circuits the backend read.
func (s *Store) Exists(key []byte) (bool, error) {
	if _, ok := s.cache.Get(string(key)); ok {
		return true, nil
	}
	found, err := s.backend.Exists(storage.Default, key)
	if err != nil {
		return false, opendberr.Wrap(opendberr.Storage, "kv.Exists", err)
	}
	return found, nil
}

// Pair is a scanned key-value entry.
type Pair struct {
	Key   []byte
	Value []byte
}

// ScanPrefix reads directly from the backend in lexicographic key order; the
// cache is neither consulted nor populated (spec §4.4).
func (s *Store) ScanPrefix(prefix []byte) ([]Pair, error) {
	kvs, err := s.backend.ScanPrefix(storage.Default, prefix)
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Storage, "kv.ScanPrefix", err)
	}
	out := make([]Pair, len(kvs))
	for i, kv := range kvs {
		out[i] = Pair{Key: kv.Key, Value: kv.Value}
	}
	return out, nil
}
