// Package obsmetrics registers OpenDB's Prometheus metrics: cache hit/miss
// counters, storage operation latency, and vector index rebuild/staleness
// gauges. Every metric is package-level and registered at init; OpenDB is
// embedded, so there is no bundled HTTP endpoint — Handler returns a
// promhttp.Handler for the host application to mount wherever it already
// serves metrics.
package obsmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opendb_cache_hits_total",
			Help: "Total cache hits by cache name.",
		},
		[]string{"cache"},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opendb_cache_misses_total",
			Help: "Total cache misses by cache name.",
		},
		[]string{"cache"},
	)

	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opendb_cache_evictions_total",
			Help: "Total entries evicted by cache name.",
		},
		[]string{"cache"},
	)

	StorageOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opendb_storage_operation_duration_seconds",
			Help:    "Storage backend operation latency by operation and partition.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "partition"},
	)

	TransactionCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opendb_transaction_commits_total",
			Help: "Total transaction commit attempts by outcome (ok, conflict).",
		},
		[]string{"outcome"},
	)

	VectorRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "opendb_vector_rebuild_duration_seconds",
			Help:    "Duration of HNSW index rebuilds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	VectorIndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opendb_vector_index_size",
			Help: "Number of embeddings in the most recently built HNSW index.",
		},
	)

	VectorIndexStale = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opendb_vector_index_stale",
			Help: "Whether the vector index is currently stale (1) or fresh (0).",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEvictionsTotal,
		StorageOpDuration,
		TransactionCommitsTotal,
		VectorRebuildDuration,
		VectorIndexSize,
		VectorIndexStale,
	)
}

// Handler returns an http.Handler serving the Prometheus text exposition
// format. The embedding application mounts this on its own mux; OpenDB does
// not run an HTTP server itself.
func Handler() http.Handler {
	return promhttp.Handler()
}
