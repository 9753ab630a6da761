// Package kv defines the narrow key-value contract the cache requires from a
// shared store, plus a Redis-backed implementation and optional middleware
// (retries, circuit breaking) for hardening shared-tier access.
package kv

import (
	"context"
	"time"
)

// Store is the minimal capability set the cache consumes from a shared
// key-value store. Any backend that can get, set (with and without native
// expiry), and delete string values can serve as the shared tier.
//
// Implementations must return ErrNotFound from Get for absent keys so that
// callers can distinguish a miss from a store failure.
type Store interface {
	// Get returns the raw value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value unconditionally without expiry.
	Set(ctx context.Context, key, value string) error

	// SetEx writes value with a native time-to-live.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes the given keys and returns how many of them existed.
	Delete(ctx context.Context, keys ...string) (int, error)
}
