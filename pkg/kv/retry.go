package kv

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for shared-store retries.
var (
	storeRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_cache_store_retries_total",
		Help: "Total number of shared-store retry attempts by error class",
	}, []string{"error_class"})

	storeRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_cache_store_retry_backoff_seconds",
		Help:    "Backoff duration for shared-store retries by error class",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"error_class"})

	storeRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_cache_store_retry_exhausted_total",
		Help: "Total number of times shared-store retries were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for shared-store retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial call).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration. Backoffs are
// kept short: the cache fails open, so a slow retry ladder hurts more than a
// miss.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryingStore wraps a Store with bounded exponential-backoff retries for
// transient errors. Misses (ErrNotFound) and non-transient failures pass
// through immediately.
type RetryingStore struct {
	next   Store
	config RetryConfig
}

// NewRetryingStore wraps next with retry logic. Zero config fields fall back
// to the defaults.
func NewRetryingStore(next Store, config RetryConfig) *RetryingStore {
	defaults := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffMultiplier <= 1.0 {
		config.BackoffMultiplier = defaults.BackoffMultiplier
	}

	return &RetryingStore{
		next:   next,
		config: config,
	}
}

// Get returns the raw value stored under key, or ErrNotFound.
func (s *RetryingStore) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := s.retryWithBackoff(ctx, "get", func() error {
		var err error
		val, err = s.next.Get(ctx, key)
		return err
	})
	return val, err
}

// Set writes value without expiry.
func (s *RetryingStore) Set(ctx context.Context, key, value string) error {
	return s.retryWithBackoff(ctx, "set", func() error {
		return s.next.Set(ctx, key, value)
	})
}

// SetEx writes value with a native time-to-live.
func (s *RetryingStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.retryWithBackoff(ctx, "setex", func() error {
		return s.next.SetEx(ctx, key, value, ttl)
	})
}

// Delete removes the given keys and returns how many of them existed.
func (s *RetryingStore) Delete(ctx context.Context, keys ...string) (int, error) {
	var removed int
	err := s.retryWithBackoff(ctx, "delete", func() error {
		var err error
		removed, err = s.next.Delete(ctx, keys...)
		return err
	})
	return removed, err
}

// retryWithBackoff executes a store call with exponential backoff retry logic.
// It respects context cancellation and adds jitter to prevent thundering herd.
func (s *RetryingStore) retryWithBackoff(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	backoff := s.config.InitialBackoff

	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("operation", op).
					Int("attempt", attempt).
					Msg("Store call succeeded after retry")
			}
			return nil
		}

		// A miss is a result, not a failure
		if errors.Is(err, ErrNotFound) {
			return err
		}

		lastErr = err
		errorClass := Classify(err)

		if !shouldRetry(errorClass) {
			return lastErr
		}

		// If this was the last attempt, don't wait
		if attempt >= s.config.MaxAttempts {
			break
		}

		storeRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		// Add jitter (±20% randomness)
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		storeRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(jitter.Seconds())

		log.Debug().
			Str("operation", op).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying store call after backoff")

		select {
		case <-ctx.Done():
			log.Warn().
				Str("operation", op).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
			// Continue to next attempt
		}

		backoff = time.Duration(float64(backoff) * s.config.BackoffMultiplier)
		if backoff > s.config.MaxBackoff {
			backoff = s.config.MaxBackoff
		}
	}

	errorClass := Classify(lastErr)
	storeRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	log.Warn().
		Str("operation", op).
		Str("error_class", string(errorClass)).
		Int("max_attempts", s.config.MaxAttempts).
		Msg("Store retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, s.config.MaxAttempts, lastErr)
}
