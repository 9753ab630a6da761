package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by tier (local, shared)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_cache_hits_total",
			Help: "Total number of agent cache hits",
		},
		[]string{"tier"}, // "local", "shared"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_cache_misses_total",
			Help: "Total number of agent cache misses",
		},
	)

	// CacheEvictions tracks entries evicted by policy decisions
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_cache_evictions_total",
			Help: "Total number of agent cache entries evicted",
		},
		[]string{"policy"}, // "lru", "lfu", "adaptive"
	)

	// CacheInvalidations tracks entries removed by tag invalidation
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_cache_invalidations_total",
			Help: "Total number of agent cache entries invalidated by tag",
		},
	)

	// CacheLocalSize tracks the byte size of the local tier
	CacheLocalSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_cache_local_size_bytes",
			Help: "Current size of the local cache tier in bytes",
		},
	)

	// CacheLocalEntries tracks the entry count of the local tier
	CacheLocalEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_cache_local_entries",
			Help: "Current number of entries in the local cache tier",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "evict", "invalidate", "cleanup"
	)
)
