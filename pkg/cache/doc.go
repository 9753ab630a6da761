// Package cache provides two-tier caching for agent workloads: an
// in-process local tier over a shared Redis-backed tier.
//
// The storage layer implements the following features:
//
// - Content-addressed keys (SHA-256 over namespace, type, and components)
// - TTL expiry, detected lazily on read and swept by cleanup
// - Tag-based invalidation across both tiers
// - Pluggable eviction policies (LRU, LFU, adaptive scoring)
// - Fail-open semantics: cache trouble degrades hit ratio, never callers
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create the shared store
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	store := kv.NewRedisStore(redisClient)
//
//	// Create the two-tier storage
//	storage := cache.NewStorage(cache.StorageConfig{Store: store})
//
//	// Build a content-addressed key
//	key := cache.NewKey("agent:planner", cache.TypeResponse, map[string]string{
//		"input_hash": cache.HashText("what is the weather"),
//		"model":      "gpt-4",
//	})
//
//	// Store and read back
//	storage.Set(ctx, key, "sunny", cache.SetOptions{
//		TTL:  time.Hour,
//		Tags: []string{"agent:planner", "model:gpt-4"},
//	})
//	if entry := storage.Get(ctx, key); entry != nil {
//		// Cache hit - entry.Value holds the serialized payload
//	}
//
// # Invalidation and Maintenance
//
//	// Drop every locally resident entry tagged for a model
//	removed := storage.InvalidateByTags(ctx, []string{"model:gpt-4"})
//
//	// Sweep expired entries
//	expired := storage.CleanupExpired(ctx)
//
//	// Reclaim space with a policy
//	policy := cache.NewAdaptivePolicy(100 * 1024 * 1024)
//	for _, candidate := range policy.Candidates(storage.Entries(), requiredSpace) {
//		storage.Evict(ctx, candidate)
//	}
//
// # Metrics
//
// The storage layer exports Prometheus metrics:
//
//   - agent_cache_hits_total{tier} - Cache hits by tier
//   - agent_cache_misses_total - Cache misses
//   - agent_cache_evictions_total{policy} - Capacity evictions
//   - agent_cache_invalidations_total - Tag invalidations
//   - agent_cache_local_size_bytes - Local tier size
//   - agent_cache_local_entries - Local tier entry count
//   - agent_cache_errors_total{operation} - Cache operation errors
//
// # Failure Semantics
//
// No Storage method returns an error. Shared-tier unavailability, timeouts,
// and undecodable records are logged at warning level, counted, and
// converted into miss/false/zero results. While the shared tier is down the
// local tier keeps serving hits, so callers observe a reduced hit ratio
// rather than request failures.
package cache
