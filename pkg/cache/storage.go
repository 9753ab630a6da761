package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/agent-cache/pkg/kv"
	"github.com/Sternrassler/agent-cache/pkg/logging"
)

// DefaultNamespacePrefix prefixes every shared-tier key so cache records
// cannot collide with unrelated data in the same store.
const DefaultNamespacePrefix = "agent_cache"

// StorageConfig configures a Storage instance.
type StorageConfig struct {
	// Store is the shared tier. Required.
	Store kv.Store

	// NamespacePrefix prefixes every shared-tier key.
	// Defaults to DefaultNamespacePrefix.
	NamespacePrefix string
}

// Storage is a two-tier cache store: an in-process map (authoritative for
// hot reads) over a shared kv.Store (durability, cross-process visibility).
//
// Storage fails open. Shared-tier and codec failures are logged and counted,
// then surfaced as the "nothing happened" value (nil, false, 0); no method
// returns an error. When the shared tier is unreachable the cache degrades
// to local-tier-only behavior.
type Storage struct {
	store  kv.Store
	prefix string
	logger zerolog.Logger

	mu    sync.RWMutex
	local map[string]*Entry // keyed by HashKey

	stats *Stats
}

// NewStorage creates a two-tier Storage over the given shared store.
func NewStorage(cfg StorageConfig) *Storage {
	if cfg.Store == nil {
		panic("kv store cannot be nil")
	}
	prefix := cfg.NamespacePrefix
	if prefix == "" {
		prefix = DefaultNamespacePrefix
	}
	return &Storage{
		store:  cfg.Store,
		prefix: prefix,
		logger: logging.NewLogger("cache-storage"),
		local:  make(map[string]*Entry),
		stats:  NewStats(),
	}
}

// sharedKey builds the namespaced shared-tier key for a hash key.
func (s *Storage) sharedKey(hashKey string) string {
	return s.prefix + ":" + hashKey
}

// Get retrieves the entry for key, or nil on miss.
//
// The local tier is checked first; a live local entry is touched and returned
// without shared-tier I/O. An expired local entry is dropped and the shared
// tier consulted. A valid shared-tier record is promoted into the local tier.
// Every failure path degrades to a miss. The returned entry is a copy;
// callers never alias the resident entry.
func (s *Storage) Get(ctx context.Context, key Key) *Entry {
	hashKey := key.HashKey

	// Local tier
	s.mu.Lock()
	if entry, ok := s.local[hashKey]; ok {
		if !entry.IsExpired() {
			entry.Touch()
			s.stats.RecordHit()
			out := entry.clone()
			s.mu.Unlock()
			CacheHits.WithLabelValues("local").Inc()
			return out
		}
		// Expired in place: drop and fall through to the shared tier
		delete(s.local, hashKey)
		s.stats.RecordInvalidation(entry.SizeBytes)
	}
	s.mu.Unlock()
	s.syncGauges()

	// Shared tier
	raw, err := s.store.Get(ctx, s.sharedKey(hashKey))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn().Err(err).
				Str("hash_key", hashKey).
				Str("error_class", string(kv.Classify(err))).
				Msg("Shared tier get failed")
			CacheErrors.WithLabelValues("get").Inc()
		}
		return s.miss()
	}

	entry, err := DecodeEntry([]byte(raw))
	if err != nil {
		s.logger.Warn().Err(err).
			Str("hash_key", hashKey).
			Msg("Undecodable shared tier record")
		CacheErrors.WithLabelValues("get").Inc()
		return s.miss()
	}

	if entry.IsExpired() {
		// The record outlived its TTL; clear it so later reads miss fast
		if _, err := s.store.Delete(ctx, s.sharedKey(hashKey)); err != nil {
			s.logger.Warn().Err(err).
				Str("hash_key", hashKey).
				Msg("Shared tier delete of expired record failed")
			CacheErrors.WithLabelValues("delete").Inc()
		}
		return s.miss()
	}

	// Promote into the local tier
	entry.Touch()
	s.mu.Lock()
	if resident, ok := s.local[hashKey]; ok {
		s.stats.recordRemoval(resident.SizeBytes)
	}
	s.local[hashKey] = entry
	s.stats.RecordStore(entry.SizeBytes)
	s.stats.RecordHit()
	out := entry.clone()
	s.mu.Unlock()
	s.syncGauges()

	CacheHits.WithLabelValues("shared").Inc()
	return out
}

// miss records a cache miss and returns nil.
func (s *Storage) miss() *Entry {
	s.stats.RecordMiss()
	CacheMisses.Inc()
	return nil
}

// SetOptions carries the optional attributes of a Set.
type SetOptions struct {
	// TTL is the entry lifetime. Zero means the entry never expires.
	TTL time.Duration

	// Tags index the entry for InvalidateByTags.
	Tags []string

	// Metadata is free-form annotation carried with the entry.
	Metadata map[string]string
}

// Set serializes value and stores it under key in both tiers.
//
// Returns false when the value cannot be serialized or the caller's context
// ended mid-write. A failed shared-tier write alone still returns true: the
// local tier holds the entry and keeps serving it (degraded mode).
func (s *Storage) Set(ctx context.Context, key Key, value any, opts SetOptions) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("key", key.Key).
			Msg("Value not serializable")
		CacheErrors.WithLabelValues("set").Inc()
		return false
	}

	entry := NewEntry(key, payload, opts.TTL, opts.Tags, opts.Metadata)

	// Local tier; an overwrite displaces the resident entry
	s.mu.Lock()
	if resident, ok := s.local[key.HashKey]; ok {
		s.stats.recordRemoval(resident.SizeBytes)
	}
	s.local[key.HashKey] = entry
	s.stats.RecordStore(entry.SizeBytes)
	s.mu.Unlock()
	s.syncGauges()

	data, err := entry.Encode()
	if err != nil {
		s.logger.Warn().Err(err).
			Str("hash_key", key.HashKey).
			Msg("Cache entry not encodable")
		CacheErrors.WithLabelValues("set").Inc()
		return true
	}

	// Shared tier, with native expiry when a TTL is set
	skey := s.sharedKey(key.HashKey)
	if opts.TTL > 0 {
		err = s.store.SetEx(ctx, skey, string(data), opts.TTL)
	} else {
		err = s.store.Set(ctx, skey, string(data))
	}
	if err != nil {
		s.logger.Warn().Err(err).
			Str("hash_key", key.HashKey).
			Str("error_class", string(kv.Classify(err))).
			Msg("Shared tier write failed")
		CacheErrors.WithLabelValues("set").Inc()
		if isCallerCancelled(err) {
			return false
		}
	}
	return true
}

// Delete removes the entry for key from both tiers. Returns true iff the
// shared tier reports at least one key removed.
func (s *Storage) Delete(ctx context.Context, key Key) bool {
	hashKey := key.HashKey

	s.mu.Lock()
	if resident, ok := s.local[hashKey]; ok {
		delete(s.local, hashKey)
		s.stats.RecordInvalidation(resident.SizeBytes)
	}
	s.mu.Unlock()
	s.syncGauges()

	removed, err := s.store.Delete(ctx, s.sharedKey(hashKey))
	if err != nil {
		s.logger.Warn().Err(err).
			Str("hash_key", hashKey).
			Str("error_class", string(kv.Classify(err))).
			Msg("Shared tier delete failed")
		CacheErrors.WithLabelValues("delete").Inc()
		return false
	}
	return removed > 0
}

// Evict removes an eviction candidate selected by a policy. Returns true
// when the local tier held the entry. A failed shared-tier delete does not
// undo the local removal; the record lingers in the shared store until its
// TTL clears it.
func (s *Storage) Evict(ctx context.Context, entry *Entry) bool {
	s.mu.Lock()
	resident, ok := s.local[entry.HashKey]
	if ok {
		delete(s.local, entry.HashKey)
		s.stats.RecordEviction(resident.SizeBytes)
	}
	s.mu.Unlock()
	if !ok {
		// Removed concurrently since the candidate snapshot was taken
		return false
	}
	s.syncGauges()

	if _, err := s.store.Delete(ctx, s.sharedKey(entry.HashKey)); err != nil {
		s.logger.Warn().Err(err).
			Str("hash_key", entry.HashKey).
			Msg("Shared tier delete failed during eviction")
		CacheErrors.WithLabelValues("evict").Inc()
	}
	return true
}

// InvalidateByTags removes every local-tier entry whose tag set intersects
// tags, deletes the shared-tier copies, and returns the count removed.
//
// Only locally resident entries are scanned. An entry evicted from the local
// tier but still live in the shared tier is out of reach of the tag scan and
// expires via its TTL.
func (s *Storage) InvalidateByTags(ctx context.Context, tags []string) int {
	s.mu.Lock()
	var sharedKeys []string
	for hashKey, entry := range s.local {
		if entry.HasAnyTag(tags) {
			delete(s.local, hashKey)
			s.stats.RecordInvalidation(entry.SizeBytes)
			CacheInvalidations.Inc()
			sharedKeys = append(sharedKeys, s.sharedKey(hashKey))
		}
	}
	s.mu.Unlock()
	s.syncGauges()

	if len(sharedKeys) > 0 {
		if _, err := s.store.Delete(ctx, sharedKeys...); err != nil {
			s.logger.Warn().Err(err).
				Int("count", len(sharedKeys)).
				Msg("Shared tier delete failed during tag invalidation")
			CacheErrors.WithLabelValues("invalidate").Inc()
		}
	}
	return len(sharedKeys)
}

// CleanupExpired removes every expired local-tier entry, clears the shared
// copies best-effort, and returns the count removed.
func (s *Storage) CleanupExpired(ctx context.Context) int {
	s.mu.Lock()
	var sharedKeys []string
	for hashKey, entry := range s.local {
		if entry.IsExpired() {
			delete(s.local, hashKey)
			s.stats.RecordInvalidation(entry.SizeBytes)
			sharedKeys = append(sharedKeys, s.sharedKey(hashKey))
		}
	}
	s.mu.Unlock()
	s.syncGauges()

	if len(sharedKeys) > 0 {
		if _, err := s.store.Delete(ctx, sharedKeys...); err != nil {
			s.logger.Warn().Err(err).
				Int("count", len(sharedKeys)).
				Msg("Shared tier delete failed during expiry cleanup")
			CacheErrors.WithLabelValues("cleanup").Inc()
		}
	}
	return len(sharedKeys)
}

// Entries returns snapshot copies of all locally resident entries, expired
// or not. The snapshot is the input for eviction policies.
func (s *Storage) Entries() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]*Entry, 0, len(s.local))
	for _, entry := range s.local {
		entries = append(entries, entry.clone())
	}
	return entries
}

// Stats returns the counters owned by this Storage.
func (s *Storage) Stats() *Stats {
	return s.stats
}

// Len returns the number of locally resident entries.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.local)
}

// syncGauges publishes the local-tier size and entry count.
func (s *Storage) syncGauges() {
	CacheLocalSize.Set(float64(s.stats.TotalSize()))
	CacheLocalEntries.Set(float64(s.stats.EntryCount()))
}

// isCallerCancelled reports whether a shared-tier failure was caused by the
// caller's context rather than by store trouble. The retry middleware wraps
// context errors in its own sentinel, so both shapes are checked.
func isCallerCancelled(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, kv.ErrContextCancelled)
}
