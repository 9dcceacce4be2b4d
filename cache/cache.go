// Package cache implements the bounded LRU mapping OpenDB uses as its
// write-through read cache: byte-KV values and decoded records are cached
// independently, each sized at database-open time.
//
// An explicit cache contract backed by github.com/hashicorp/golang-lru/v2 —
// a bounded LRU mapping with oldest-access eviction, so there is no reason
// to hand-roll one.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/opendb-io/opendb/internal/obsmetrics"
)

// Cache is a bounded LRU mapping. Capacity is fixed at construction (spec
// §4.3). A Cache with capacity 0 is always empty: Get always misses, Insert
// is a no-op — this is how the facade implements kv_cache_size=0 /
// record_cache_size=0 "disables caching" without a separate code path.
type Cache[K comparable, V any] struct {
	name string
	lru  *lru.Cache[K, V]
}

// New constructs a Cache with the given capacity. capacity<=0 yields a
// disabled (always-miss) cache. name labels the opendb_cache_hits_total /
// opendb_cache_misses_total / opendb_cache_evictions_total metrics.
func New[K comparable, V any](name string, capacity int) *Cache[K, V] {
	if capacity <= 0 {
		return &Cache[K, V]{name: name}
	}
	l, _ := lru.New[K, V](capacity) // only errors on size<=0, already excluded
	return &Cache[K, V]{name: name, lru: l}
}

// Get reports whether key is cached and, if so, its value. Hitting Get
// refreshes the entry's recency (golang-lru's Get already does this).
func (c *Cache[K, V]) Get(key K) (V, bool) {
	if c.lru == nil {
		obsmetrics.CacheMissesTotal.WithLabelValues(c.name).Inc()
		var zero V
		return zero, false
	}
	v, ok := c.lru.Get(key)
	if ok {
		obsmetrics.CacheHitsTotal.WithLabelValues(c.name).Inc()
	} else {
		obsmetrics.CacheMissesTotal.WithLabelValues(c.name).Inc()
	}
	return v, ok
}

// Insert adds or overwrites key's cached value. When full, the
// least-recently-used entry is evicted first.
func (c *Cache[K, V]) Insert(key K, value V) {
	if c.lru == nil {
		return
	}
	if c.lru.Add(key, value) {
		obsmetrics.CacheEvictionsTotal.WithLabelValues(c.name).Inc()
	}
}

// Invalidate removes key from the cache, if present.
func (c *Cache[K, V]) Invalidate(key K) {
	if c.lru == nil {
		return
	}
	c.lru.Remove(key)
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	if c.lru == nil {
		return
	}
	c.lru.Purge()
}

// Len returns the number of entries currently cached.
func (c *Cache[K, V]) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
