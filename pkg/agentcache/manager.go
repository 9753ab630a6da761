package agentcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/agent-cache/pkg/cache"
	"github.com/Sternrassler/agent-cache/pkg/kv"
	"github.com/Sternrassler/agent-cache/pkg/logging"
)

// Defaults applied by DefaultConfig and New.
const (
	DefaultMaxSizeBytes    = 100 * 1024 * 1024
	DefaultPolicy          = cache.PolicyAdaptive
	DefaultResponseTTL     = 1 * time.Hour
	DefaultEmbeddingTTL    = 24 * time.Hour
	DefaultComputationTTL  = 1 * time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

// Default response generation parameters.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// ErrInvalidConfig indicates a Config that cannot produce a working Manager.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the manager configuration.
type Config struct {
	// Store is the shared key-value tier. Required.
	Store kv.Store

	// MaxSizeBytes caps the local tier; periodic cleanup evicts down to it.
	MaxSizeBytes int64

	// Policy selects the eviction policy: "lru", "lfu", or "adaptive".
	Policy string

	// NamespacePrefix prefixes every shared-tier key.
	NamespacePrefix string

	// Default TTLs per cache type. Zero picks the package default.
	ResponseTTL    time.Duration
	EmbeddingTTL   time.Duration
	ComputationTTL time.Duration

	// CleanupInterval rate-limits PeriodicCleanup and paces Run.
	CleanupInterval time.Duration

	// Warming configures the cache warming worker pool.
	Warming WarmConfig
}

// DefaultConfig returns a safe default configuration over the given store.
func DefaultConfig(store kv.Store) Config {
	return Config{
		Store:           store,
		MaxSizeBytes:    DefaultMaxSizeBytes,
		Policy:          DefaultPolicy,
		NamespacePrefix: cache.DefaultNamespacePrefix,
		ResponseTTL:     DefaultResponseTTL,
		EmbeddingTTL:    DefaultEmbeddingTTL,
		ComputationTTL:  DefaultComputationTTL,
		CleanupInterval: DefaultCleanupInterval,
		Warming:         DefaultWarmConfig(),
	}
}

// Manager is the domain facade over the two-tier cache: typed response,
// embedding, and computation caching, tag invalidation, warming, and
// periodic maintenance. All methods fail open; cache trouble surfaces as
// miss/false/zero results, never as errors.
type Manager struct {
	storage *cache.Storage
	policy  cache.EvictionPolicy
	config  Config
	logger  zerolog.Logger

	cleanupMu   sync.Mutex
	lastCleanup time.Time
}

// New creates a Manager. Zero-valued optional fields fall back to defaults;
// a nil Store or an unknown policy name is rejected.
func New(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if cfg.Policy == "" {
		cfg.Policy = DefaultPolicy
	}
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = DefaultResponseTTL
	}
	if cfg.EmbeddingTTL <= 0 {
		cfg.EmbeddingTTL = DefaultEmbeddingTTL
	}
	if cfg.ComputationTTL <= 0 {
		cfg.ComputationTTL = DefaultComputationTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	cfg.Warming = cfg.Warming.withDefaults()

	policy, err := cache.NewPolicy(cfg.Policy, cfg.MaxSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	storage := cache.NewStorage(cache.StorageConfig{
		Store:           cfg.Store,
		NamespacePrefix: cfg.NamespacePrefix,
	})

	return &Manager{
		storage: storage,
		policy:  policy,
		config:  cfg,
		logger:  logging.NewLogger("agent-cache"),
	}, nil
}

// ResponseParams are the generation parameters that shape a response key.
// Two lookups hit the same entry only when all three parameters match.
type ResponseParams struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// DefaultResponseParams returns the standard generation parameters for model.
func DefaultResponseParams(model string) ResponseParams {
	return ResponseParams{
		Model:       model,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// responseKey builds the content-addressed key for an agent response.
func responseKey(agentID, input string, p ResponseParams) cache.Key {
	return cache.NewKey("agent:"+agentID, cache.TypeResponse, map[string]string{
		"input_hash":  cache.HashText(input),
		"model":       p.Model,
		"temperature": strconv.FormatFloat(p.Temperature, 'g', -1, 64),
		"max_tokens":  strconv.Itoa(p.MaxTokens),
	})
}

// embeddingKey builds the content-addressed key for an embedding vector.
func embeddingKey(text, model string) cache.Key {
	return cache.NewKey("embeddings", cache.TypeEmbedding, map[string]string{
		"content_hash": cache.HashText(text),
		"model":        model,
	})
}

// computationKey builds the content-addressed key for a computation result.
func computationKey(computationID string, params map[string]any) cache.Key {
	return cache.NewKey("computations", cache.TypeComputation, map[string]string{
		"computation": computationID,
		"params_hash": cache.HashParams(params),
	})
}

// entryTTL maps a caller's ttl argument onto a storage TTL: zero picks the
// configured default, negative disables expiry.
func entryTTL(ttl, fallback time.Duration) time.Duration {
	switch {
	case ttl == 0:
		return fallback
	case ttl < 0:
		return 0
	default:
		return ttl
	}
}

// CachedResponse returns the cached response for an agent's input under the
// given generation parameters, or ("", false) on miss.
func (m *Manager) CachedResponse(ctx context.Context, agentID, input string, p ResponseParams) (string, bool) {
	entry := m.storage.Get(ctx, responseKey(agentID, input, p))
	if entry == nil {
		return "", false
	}
	var response string
	if err := json.Unmarshal(entry.Value, &response); err != nil {
		m.logger.Warn().Err(err).
			Str("agent_id", agentID).
			Msg("Cached response payload malformed")
		return "", false
	}
	return response, true
}

// CacheResponse stores an agent response. A ttl of zero applies the
// configured ResponseTTL; a negative ttl stores the entry without expiry.
func (m *Manager) CacheResponse(ctx context.Context, agentID, input, response string, p ResponseParams, ttl time.Duration) bool {
	return m.storage.Set(ctx, responseKey(agentID, input, p), response, cache.SetOptions{
		TTL:  entryTTL(ttl, m.config.ResponseTTL),
		Tags: []string{"agent:" + agentID, "model:" + p.Model, "response_cache"},
	})
}

// CachedEmbedding returns the embedding vector cached for text under model,
// or (nil, false) on miss.
func (m *Manager) CachedEmbedding(ctx context.Context, text, model string) ([]float32, bool) {
	entry := m.storage.Get(ctx, embeddingKey(text, model))
	if entry == nil {
		return nil, false
	}
	var embedding []float32
	if err := json.Unmarshal(entry.Value, &embedding); err != nil {
		m.logger.Warn().Err(err).
			Str("model", model).
			Msg("Cached embedding payload malformed")
		return nil, false
	}
	return embedding, true
}

// CacheEmbedding stores an embedding vector. A ttl of zero applies the
// configured EmbeddingTTL; a negative ttl stores the entry without expiry.
func (m *Manager) CacheEmbedding(ctx context.Context, text, model string, embedding []float32, ttl time.Duration) bool {
	return m.storage.Set(ctx, embeddingKey(text, model), embedding, cache.SetOptions{
		TTL:  entryTTL(ttl, m.config.EmbeddingTTL),
		Tags: []string{"embedding_cache", "model:" + model},
	})
}

// CachedComputation decodes the cached result for a computation and its
// parameters into dest. Returns false on miss or when the cached payload
// does not decode into dest.
func (m *Manager) CachedComputation(ctx context.Context, computationID string, params map[string]any, dest any) bool {
	entry := m.storage.Get(ctx, computationKey(computationID, params))
	if entry == nil {
		return false
	}
	if err := json.Unmarshal(entry.Value, dest); err != nil {
		m.logger.Warn().Err(err).
			Str("computation", computationID).
			Msg("Cached computation payload malformed")
		return false
	}
	return true
}

// CacheComputation stores a computation result keyed by the computation id
// and a stable hash of its parameters. A ttl of zero applies the configured
// ComputationTTL; a negative ttl stores the entry without expiry.
func (m *Manager) CacheComputation(ctx context.Context, computationID string, params map[string]any, result any, ttl time.Duration) bool {
	return m.storage.Set(ctx, computationKey(computationID, params), result, cache.SetOptions{
		TTL:  entryTTL(ttl, m.config.ComputationTTL),
		Tags: []string{"computation_cache", "computation:" + computationID},
	})
}

// InvalidateAgentCache removes every locally resident entry tagged for the
// agent and returns the count removed.
func (m *Manager) InvalidateAgentCache(ctx context.Context, agentID string) int {
	return m.storage.InvalidateByTags(ctx, []string{"agent:" + agentID})
}

// InvalidateModelCache removes every locally resident entry tagged for the
// model and returns the count removed. Responses and embeddings both carry
// the model tag, so a model rollout clears them together.
func (m *Manager) InvalidateModelCache(ctx context.Context, model string) int {
	return m.storage.InvalidateByTags(ctx, []string{"model:" + model})
}

// CleanupResult reports the work done by one PeriodicCleanup pass.
type CleanupResult struct {
	ExpiredRemoved int
	Evicted        int
}

// PeriodicCleanup sweeps expired entries, then evicts policy candidates
// until the local tier fits under its size ceiling. Calls arriving within
// CleanupInterval of the previous pass return zeros without scanning.
func (m *Manager) PeriodicCleanup(ctx context.Context) CleanupResult {
	m.cleanupMu.Lock()
	if time.Since(m.lastCleanup) < m.config.CleanupInterval {
		m.cleanupMu.Unlock()
		return CleanupResult{}
	}
	m.lastCleanup = time.Now()
	m.cleanupMu.Unlock()

	result := CleanupResult{ExpiredRemoved: m.storage.CleanupExpired(ctx)}

	stats := m.storage.Stats()
	totalSize := stats.TotalSize()
	maxSize := m.policy.MaxSizeBytes()
	if totalSize > maxSize {
		requiredSpace := totalSize - maxSize
		for _, candidate := range m.policy.Candidates(m.storage.Entries(), requiredSpace) {
			if m.storage.Evict(ctx, candidate) {
				result.Evicted++
				cache.CacheEvictions.WithLabelValues(m.policy.Name()).Inc()
			}
		}
	}

	if result.ExpiredRemoved > 0 || result.Evicted > 0 {
		m.logger.Info().
			Int("expired_removed", result.ExpiredRemoved).
			Int("evicted", result.Evicted).
			Str("policy", m.policy.Name()).
			Msg("Cache cleanup pass complete")
	}
	return result
}

// Stats returns a snapshot of the cache counters.
func (m *Manager) Stats() cache.StatsSnapshot {
	return m.storage.Stats().Snapshot()
}

// Run drives PeriodicCleanup on a ticker until ctx ends. Intended as a
// background goroutine in long-lived processes.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	m.logger.Info().
		Dur("interval", m.config.CleanupInterval).
		Msg("Cache maintenance loop started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Cache maintenance loop stopped")
			return
		case <-ticker.C:
			m.PeriodicCleanup(ctx)
		}
	}
}
