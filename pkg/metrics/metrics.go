// Package metrics provides the centralized Prometheus registry for the agent
// cache. All metrics are defined in their respective packages (cache, kv) to
// maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the agent cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - agent_cache_hits_total{tier} (Counter): Cache hits by tier (local, shared)
//   - agent_cache_misses_total (Counter): Cache misses
//   - agent_cache_evictions_total{policy} (Counter): Entries evicted by policy (lru, lfu, adaptive)
//   - agent_cache_invalidations_total (Counter): Entries removed by tag invalidation
//   - agent_cache_local_size_bytes (Gauge): Current byte size of the local tier
//   - agent_cache_local_entries (Gauge): Current entry count of the local tier
//   - agent_cache_errors_total{operation} (Counter): Cache operation errors (get, set, delete, evict, invalidate, cleanup)
//
// Shared-Store Retry Metrics (pkg/kv):
//   - agent_cache_store_retries_total{error_class} (Counter): Retry attempts by error class
//   - agent_cache_store_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - agent_cache_store_retry_exhausted_total{error_class} (Counter): Operations that exhausted max retries
//
// Shared-Store Breaker Metrics (pkg/kv):
//   - agent_cache_store_breaker_state (Gauge): Breaker state (0=closed, 1=half-open, 2=open)
//   - agent_cache_store_breaker_trips_total (Counter): Times the breaker opened
//   - agent_cache_store_breaker_short_circuits_total (Counter): Calls rejected while the breaker was open
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(agent_cache_hits_total[5m])) /
//   (sum(rate(agent_cache_hits_total[5m])) + rate(agent_cache_misses_total[5m]))
//
//   # Local Tier Pressure
//   agent_cache_local_size_bytes / on() group_left() (100 * 1024 * 1024)
//
//   # Eviction Rate by Policy
//   rate(agent_cache_evictions_total[5m])
//
//   # Shared Store Degraded
//   agent_cache_store_breaker_state > 0
//
//   # P95 Retry Backoff
//   histogram_quantile(0.95, rate(agent_cache_store_retry_backoff_seconds_bucket[5m]))
//
//   # Cache Error Rate by Operation
//   rate(agent_cache_errors_total[5m])
