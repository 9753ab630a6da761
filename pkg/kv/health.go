package kv

import (
	"time"
)

// Thresholds for shared-tier degradation decisions.
const (
	// DefaultFailureThreshold opens the breaker once this many consecutive
	// shared-store failures are observed. Below the threshold individual
	// failures are absorbed by the fail-open cache path.
	DefaultFailureThreshold = 5

	// DefaultOpenInterval is how long an open breaker rejects calls before
	// admitting a single probe to test recovery.
	DefaultOpenInterval = 30 * time.Second
)

// BreakerState represents the position of the shared-store circuit breaker.
type BreakerState string

const (
	// BreakerClosed means the shared store is healthy; all calls pass through.
	BreakerClosed BreakerState = "closed"

	// BreakerOpen means consecutive failures crossed the threshold; calls are
	// rejected with ErrStoreOpen until the open interval elapses. The cache
	// above operates local-tier-only while the breaker is open.
	BreakerOpen BreakerState = "open"

	// BreakerHalfOpen means the open interval elapsed and a single probe call
	// is in flight to test recovery.
	BreakerHalfOpen BreakerState = "half_open"
)

// TierHealth is a snapshot of the breaker's view of the shared store.
type TierHealth struct {
	// State is the breaker position at snapshot time.
	State BreakerState `json:"state"`

	// ConsecutiveFailures is the current run of unbroken failures.
	// Reset to zero by any successful call.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastFailure is when the most recent failure was observed.
	// Zero if no failure has occurred yet.
	LastFailure time.Time `json:"last_failure"`

	// OpenedAt is when the breaker last transitioned to open.
	// Zero if the breaker has never opened.
	OpenedAt time.Time `json:"opened_at"`
}

// Degraded returns true while the cache should expect local-tier-only
// behavior from shared-store calls.
func (h TierHealth) Degraded() bool {
	return h.State == BreakerOpen
}

// TimeUntilProbe returns the duration until an open breaker admits a probe.
// Returns 0 if the breaker is not open or the interval has already passed.
func (h TierHealth) TimeUntilProbe(openInterval time.Duration) time.Duration {
	if h.State != BreakerOpen {
		return 0
	}
	remaining := time.Until(h.OpenedAt.Add(openInterval))
	if remaining < 0 {
		return 0
	}
	return remaining
}
