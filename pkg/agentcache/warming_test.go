package agentcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmConfig_Defaults(t *testing.T) {
	filled := WarmConfig{}.withDefaults()
	assert.Equal(t, DefaultWarmConcurrency, filled.MaxConcurrency)
	assert.Equal(t, DefaultWarmTimeout, filled.Timeout)

	custom := WarmConfig{MaxConcurrency: 8, Timeout: time.Second}.withDefaults()
	assert.Equal(t, 8, custom.MaxConcurrency)
	assert.Equal(t, time.Second, custom.Timeout)
}

func TestManager_Warm_PopulatesCache(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	params := DefaultResponseParams("gpt-4")
	inputs := []string{"how do I reset my password", "what are your hours", "cancel my order"}

	var calls atomic.Int64
	warmed := m.Warm(ctx, "support", inputs, params, func(_ context.Context, input string) (string, error) {
		calls.Add(1)
		return "answer: " + input, nil
	})

	assert.Equal(t, len(inputs), warmed)
	assert.Equal(t, int64(len(inputs)), calls.Load())

	for _, input := range inputs {
		response, ok := m.CachedResponse(ctx, "support", input, params)
		require.True(t, ok, "warmed input %q should hit", input)
		assert.Equal(t, "answer: "+input, response)
	}
}

func TestManager_Warm_SkipsAlreadyCached(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	params := DefaultResponseParams("gpt-4")
	inputs := []string{"a", "b", "c", "d", "e"}

	require.True(t, m.CacheResponse(ctx, "support", "a", "cached a", params, 0))
	require.True(t, m.CacheResponse(ctx, "support", "c", "cached c", params, 0))

	var calls atomic.Int64
	warmed := m.Warm(ctx, "support", inputs, params, func(_ context.Context, input string) (string, error) {
		calls.Add(1)
		return "fresh " + input, nil
	})

	assert.Equal(t, 3, warmed, "only uncached inputs count")
	assert.Equal(t, int64(3), calls.Load(), "cached inputs are never recomputed")

	response, ok := m.CachedResponse(ctx, "support", "a", params)
	require.True(t, ok)
	assert.Equal(t, "cached a", response, "existing entries keep their values")
}

func TestManager_Warm_AllCachedDoesNothing(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	params := DefaultResponseParams("gpt-4")

	require.True(t, m.CacheResponse(ctx, "support", "a", "cached", params, 0))

	var calls atomic.Int64
	warmed := m.Warm(ctx, "support", []string{"a"}, params, func(_ context.Context, _ string) (string, error) {
		calls.Add(1)
		return "", nil
	})

	assert.Equal(t, 0, warmed)
	assert.Equal(t, int64(0), calls.Load())
}

func TestManager_Warm_NilComputeStoresPlaceholders(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	params := DefaultResponseParams("gpt-4")

	warmed := m.Warm(ctx, "support", []string{"greeting"}, params, nil)
	assert.Equal(t, 1, warmed)

	response, ok := m.CachedResponse(ctx, "support", "greeting", params)
	require.True(t, ok)
	assert.Equal(t, "Cached response for: greeting", response)
}

func TestManager_Warm_ComputeFailuresSkipped(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	params := DefaultResponseParams("gpt-4")

	warmed := m.Warm(ctx, "support", []string{"good", "bad", "also good"}, params, func(_ context.Context, input string) (string, error) {
		if input == "bad" {
			return "", errors.New("model overloaded")
		}
		return "answer: " + input, nil
	})

	assert.Equal(t, 2, warmed)

	_, ok := m.CachedResponse(ctx, "support", "bad", params)
	assert.False(t, ok, "failed inputs stay uncached")
	_, ok = m.CachedResponse(ctx, "support", "good", params)
	assert.True(t, ok)
}

func TestManager_Warm_RespectsConcurrencyBound(t *testing.T) {
	m, _ := newTestManager(t, func(cfg *Config) {
		cfg.Warming.MaxConcurrency = 2
	})
	ctx := context.Background()
	params := DefaultResponseParams("gpt-4")
	inputs := []string{"a", "b", "c", "d", "e", "f"}

	var inFlight, peak atomic.Int64
	warmed := m.Warm(ctx, "support", inputs, params, func(_ context.Context, input string) (string, error) {
		current := inFlight.Add(1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return "answer: " + input, nil
	})

	assert.Equal(t, len(inputs), warmed)
	assert.LessOrEqual(t, peak.Load(), int64(2), "no more than MaxConcurrency computes in flight")
}

func TestManager_Warm_CancelledContextStopsWorkers(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	params := DefaultResponseParams("gpt-4")

	var calls atomic.Int64
	warmed := m.Warm(ctx, "support", []string{"a", "b", "c"}, params, func(_ context.Context, _ string) (string, error) {
		calls.Add(1)
		return "", nil
	})

	assert.Equal(t, 0, warmed)
	assert.Equal(t, int64(0), calls.Load(), "workers exit before computing anything")
	assert.Equal(t, int64(0), m.Stats().EntryCount)
}

func TestManager_Warm_MarksEntriesAsWarmed(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	params := DefaultResponseParams("gpt-4")

	warmed := m.Warm(ctx, "support", []string{"greeting"}, params, nil)
	require.Equal(t, 1, warmed)

	entries := m.storage.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "true", entries[0].Metadata["warmed"])
	assert.Greater(t, entries[0].TTL(), time.Duration(0), "warmed entries carry the configured response TTL")
	assert.True(t, entries[0].HasAnyTag([]string{"agent:support"}))
}
