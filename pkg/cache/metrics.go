package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store labels for metrics.
const (
	storeRedis  = "redis"
	storeMemory = "memory"
)

var (
	// CacheHits tracks cache hits by store
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_edge_cache_hits_total",
			Help: "Total number of edge cache hits",
		},
		[]string{"store"}, // "redis", "memory"
	)

	// CacheMisses tracks cache misses by store
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_edge_cache_misses_total",
			Help: "Total number of edge cache misses",
		},
		[]string{"store"},
	)

	// CacheErrors tracks store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_edge_cache_errors_total",
			Help: "Total number of edge cache store errors",
		},
		[]string{"store", "operation"}, // "get", "put"
	)

	// CacheWrites tracks background cache writes by result
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_edge_cache_writes_total",
			Help: "Total number of background edge cache writes",
		},
		[]string{"result"}, // "ok", "error", "skipped"
	)

	// CacheStoredBytes tracks body bytes written to the store
	CacheStoredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_edge_cache_stored_bytes_total",
			Help: "Total response body bytes written to the edge cache",
		},
		[]string{"store"},
	)
)
