// Package agentcache provides typed caching for AI-agent backends: agent
// responses, embedding vectors, and computation results, each
// content-addressed and tagged for group invalidation.
//
// The manager wraps the two-tier cache.Storage and inherits its fail-open
// behavior. Every method surfaces cache trouble as a miss, false, or zero
// count; no error ever reaches the calling agent.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := kv.NewRedisStore(redisClient)
//
//	manager, err := agentcache.New(agentcache.DefaultConfig(store))
//	if err != nil {
//		return err
//	}
//
//	params := agentcache.DefaultResponseParams("gpt-4")
//	if response, ok := manager.CachedResponse(ctx, "planner", input, params); ok {
//		return response // cache hit, no model call
//	}
//	response := callModel(ctx, input)
//	manager.CacheResponse(ctx, "planner", input, response, params, 0)
//
// A ttl argument of zero applies the configured default for the cache type;
// a negative ttl stores the entry without expiry.
//
// # Embeddings and Computations
//
//	if vec, ok := manager.CachedEmbedding(ctx, text, "text-embedding-3-small"); ok {
//		return vec
//	}
//
//	var result SimulationResult
//	if manager.CachedComputation(ctx, "risk-sim", simParams, &result) {
//		return result
//	}
//
// # Invalidation and Maintenance
//
//	manager.InvalidateAgentCache(ctx, "planner") // agent reconfigured
//	manager.InvalidateModelCache(ctx, "gpt-4")   // model rolled over
//
//	go manager.Run(ctx) // expiry sweep + capacity eviction on a ticker
//
// # Warming
//
//	warmed := manager.Warm(ctx, "planner", commonInputs, params,
//		func(ctx context.Context, input string) (string, error) {
//			return callModel(ctx, input)
//		})
package agentcache
