package agentcache

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/agent-cache/pkg/cache"
	"github.com/Sternrassler/agent-cache/pkg/logging"
)

// Defaults for the warming worker pool.
const (
	DefaultWarmConcurrency = 4
	DefaultWarmTimeout     = 30 * time.Second
)

// ComputeFunc produces the response used to warm the cache for one input.
type ComputeFunc func(ctx context.Context, input string) (string, error)

// WarmConfig holds the warming worker pool configuration.
type WarmConfig struct {
	// MaxConcurrency is the number of parallel compute workers.
	MaxConcurrency int

	// Timeout bounds a single compute call.
	Timeout time.Duration
}

// DefaultWarmConfig returns safe warming defaults.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		MaxConcurrency: DefaultWarmConcurrency,
		Timeout:        DefaultWarmTimeout,
	}
}

// withDefaults fills zero-valued fields.
func (c WarmConfig) withDefaults() WarmConfig {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultWarmConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultWarmTimeout
	}
	return c
}

// placeholderCompute reserves a cache slot when no compute function is
// provided.
func placeholderCompute(_ context.Context, input string) (string, error) {
	return "Cached response for: " + input, nil
}

// Warm precomputes responses for common inputs using a worker pool. Inputs
// already cached are skipped and do not count. Each remaining input is
// computed under the configured per-input timeout and stored with warming
// metadata and the configured ResponseTTL; compute failures are logged and
// skipped. Returns the number of newly populated entries.
//
// A nil compute stores placeholder responses.
func (m *Manager) Warm(ctx context.Context, agentID string, inputs []string, p ResponseParams, compute ComputeFunc) int {
	start := time.Now()
	logger := logging.NewLogger("warming")

	if compute == nil {
		compute = placeholderCompute
	}

	// Skip inputs that are already cached
	pending := make([]string, 0, len(inputs))
	for _, input := range inputs {
		if _, ok := m.CachedResponse(ctx, agentID, input, p); !ok {
			pending = append(pending, input)
		}
	}
	if len(pending) == 0 {
		return 0
	}

	logger.Info().
		Str("agent_id", agentID).
		Int("inputs", len(inputs)).
		Int("pending", len(pending)).
		Msg("Starting cache warming")

	queue := make(chan string, len(pending))
	for _, input := range pending {
		queue <- input
	}
	close(queue)

	var (
		countMu sync.Mutex
		warmed  int
	)

	workers := m.config.Warming.MaxConcurrency
	if workers > len(pending) {
		workers = len(pending)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			processed := 0

			for input := range queue {
				select {
				case <-ctx.Done():
					logger.Debug().
						Int("worker_id", workerID).
						Int("processed", processed).
						Msg("Warming worker stopping (context cancelled)")
					return
				default:
				}

				// Compute with per-input timeout
				computeCtx, cancel := context.WithTimeout(ctx, m.config.Warming.Timeout)
				response, err := compute(computeCtx, input)
				cancel()
				if err != nil {
					logger.Warn().Err(err).
						Int("worker_id", workerID).
						Str("agent_id", agentID).
						Msg("Warming compute failed")
					continue
				}

				ok := m.storage.Set(ctx, responseKey(agentID, input, p), response, cache.SetOptions{
					TTL:      entryTTL(0, m.config.ResponseTTL),
					Tags:     []string{"agent:" + agentID, "model:" + p.Model, "response_cache"},
					Metadata: map[string]string{"warmed": "true"},
				})
				if ok {
					countMu.Lock()
					warmed++
					countMu.Unlock()
				}
				processed++
			}

			if processed > 0 {
				logger.Debug().
					Int("worker_id", workerID).
					Int("processed", processed).
					Msg("Warming worker completed")
			}
		}(i)
	}
	wg.Wait()

	logger.Info().
		Str("agent_id", agentID).
		Int("warmed", warmed).
		Dur("duration", time.Since(start)).
		Msg("Cache warming complete")

	return warmed
}
