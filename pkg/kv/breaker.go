package kv

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for shared-store circuit breaking.
var (
	storeBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agent_cache_store_breaker_state",
		Help: "Shared-store breaker state (0=closed, 1=half-open, 2=open)",
	})

	storeBreakerTripsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_cache_store_breaker_trips_total",
		Help: "Total number of times the shared-store breaker opened",
	})

	storeBreakerShortCircuitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_cache_store_breaker_short_circuits_total",
		Help: "Total number of calls rejected while the shared-store breaker was open",
	})
)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int

	// OpenInterval is how long the breaker stays open before admitting a probe.
	OpenInterval time.Duration
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: DefaultFailureThreshold,
		OpenInterval:     DefaultOpenInterval,
	}
}

// BreakerStore wraps a Store with a consecutive-failure circuit breaker.
// While the breaker is open every call fails fast with ErrStoreOpen instead
// of waiting on a dead backend; the cache layer above already treats store
// errors as misses, so an open breaker degrades it to local-tier-only
// operation rather than failing callers.
type BreakerStore struct {
	next   Store
	config BreakerConfig
	logger zerolog.Logger

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	openedAt    time.Time
}

// NewBreakerStore wraps next with circuit breaking. Zero config fields fall
// back to the defaults.
func NewBreakerStore(next Store, config BreakerConfig, logger zerolog.Logger) *BreakerStore {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.OpenInterval <= 0 {
		config.OpenInterval = DefaultOpenInterval
	}

	return &BreakerStore{
		next:   next,
		config: config,
		logger: logger,
		state:  BreakerClosed,
	}
}

// Get returns the raw value stored under key, or ErrNotFound.
func (s *BreakerStore) Get(ctx context.Context, key string) (string, error) {
	if !s.allow() {
		return "", ErrStoreOpen
	}
	val, err := s.next.Get(ctx, key)
	s.observe(err)
	return val, err
}

// Set writes value without expiry.
func (s *BreakerStore) Set(ctx context.Context, key, value string) error {
	if !s.allow() {
		return ErrStoreOpen
	}
	err := s.next.Set(ctx, key, value)
	s.observe(err)
	return err
}

// SetEx writes value with a native time-to-live.
func (s *BreakerStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if !s.allow() {
		return ErrStoreOpen
	}
	err := s.next.SetEx(ctx, key, value, ttl)
	s.observe(err)
	return err
}

// Delete removes the given keys and returns how many of them existed.
func (s *BreakerStore) Delete(ctx context.Context, keys ...string) (int, error) {
	if !s.allow() {
		return 0, ErrStoreOpen
	}
	removed, err := s.next.Delete(ctx, keys...)
	s.observe(err)
	return removed, err
}

// Health returns a snapshot of the breaker state.
func (s *BreakerStore) Health() TierHealth {
	s.mu.Lock()
	defer s.mu.Unlock()

	return TierHealth{
		State:               s.state,
		ConsecutiveFailures: s.failures,
		LastFailure:         s.lastFailure,
		OpenedAt:            s.openedAt,
	}
}

// allow decides whether a call may pass through to the shared store.
func (s *BreakerStore) allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case BreakerClosed:
		return true

	case BreakerOpen:
		if time.Since(s.openedAt) < s.config.OpenInterval {
			storeBreakerShortCircuitsTotal.Inc()
			return false
		}
		// Open interval elapsed - admit a single probe
		s.state = BreakerHalfOpen
		storeBreakerState.Set(breakerStateValue(s.state))
		s.logger.Info().
			Dur("open_interval", s.config.OpenInterval).
			Msg("Shared store probe admitted after open interval")
		return true

	case BreakerHalfOpen:
		// A probe is already in flight
		storeBreakerShortCircuitsTotal.Inc()
		return false

	default:
		return true
	}
}

// observe records the outcome of a shared-store call and drives state
// transitions. Misses and caller cancellations do not count as failures.
func (s *BreakerStore) observe(err error) {
	failure := err != nil &&
		!errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !failure {
		if s.state == BreakerHalfOpen {
			s.logger.Info().
				Int("failures_before_open", s.failures).
				Msg("Shared store recovered - breaker closed")
		}
		s.state = BreakerClosed
		s.failures = 0
		storeBreakerState.Set(breakerStateValue(s.state))
		return
	}

	s.lastFailure = time.Now()

	switch s.state {
	case BreakerHalfOpen:
		// Probe failed - back to open
		s.open(err, "Shared store probe failed - breaker reopened")

	case BreakerClosed:
		s.failures++
		if s.failures >= s.config.FailureThreshold {
			s.open(err, "Shared store unhealthy - entering local-only mode")
		}
	}
}

// open transitions to the open state. Caller must hold the mutex.
func (s *BreakerStore) open(err error, msg string) {
	s.state = BreakerOpen
	s.openedAt = time.Now()
	storeBreakerState.Set(breakerStateValue(s.state))
	storeBreakerTripsTotal.Inc()

	s.logger.Error().
		Err(err).
		Int("consecutive_failures", s.failures).
		Dur("open_interval", s.config.OpenInterval).
		Msg(msg)
}

func breakerStateValue(state BreakerState) float64 {
	switch state {
	case BreakerHalfOpen:
		return 1
	case BreakerOpen:
		return 2
	default:
		return 0
	}
}
