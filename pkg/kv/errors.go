package kv

import (
	"context"
	"errors"
	"net"
)

// Common errors returned by stores.
var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrStoreOpen is returned by BreakerStore while the circuit is open
	// and calls to the shared store are being rejected.
	ErrStoreOpen = errors.New("shared store circuit open")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of shared-store errors.
type ErrorClass string

const (
	// ErrorClassTimeout represents deadline and cancellation errors.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassConnection represents network and connection errors.
	ErrorClassConnection ErrorClass = "connection"

	// ErrorClassInternal represents all other store errors.
	ErrorClassInternal ErrorClass = "internal"
)

// Classify categorizes a store error for observability and retry decisions.
// ErrNotFound is a miss, not a failure; callers must handle it before
// classifying.
func Classify(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorClassTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorClassTimeout
		}
		return ErrorClassConnection
	}

	return ErrorClassInternal
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassTimeout:
		// The caller's deadline is already spent - retrying cannot help
		return false
	case ErrorClassConnection:
		// Transient network errors are worth another attempt
		return true
	case ErrorClassInternal:
		// Server-side errors (wrong type, scripting, OOM) repeat deterministically
		return false
	default:
		return false
	}
}
