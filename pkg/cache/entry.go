package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is a cached value plus its bookkeeping. The JSON field names define
// the persisted record format shared by both tiers; it must stay stable
// across reader and writer versions so the cache survives rolling deploys.
//
// The local-tier copy and the shared-tier copy of an entry are independent
// serializations of the same logical value. They may transiently disagree
// (the local copy usually holds a fresher access count); that drift is
// accepted.
type Entry struct {
	// Key is the human-readable composite key string.
	Key string `json:"key"`

	// HashKey is the storage key in both tiers.
	HashKey string `json:"hash_key"`

	// Value is the serialized opaque payload.
	Value json.RawMessage `json:"value"`

	// SizeBytes is the byte length of Value.
	SizeBytes int64 `json:"size_bytes"`

	// AccessCount is the number of successful reads. Starts at zero.
	AccessCount int64 `json:"access_count"`

	// LastAccessed is when the entry was last read, or stored if never read.
	LastAccessed time.Time `json:"last_accessed"`

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the entry TTL-expires. Nil means the entry never
	// expires via TTL; it remains evictable under capacity pressure.
	ExpiresAt *time.Time `json:"expires_at"`

	// Tags are free-form labels used for group invalidation. Convention is
	// "prefix:value" (e.g. "agent:researcher-1", "model:gpt-4"), but the
	// set is open and not enforced.
	Tags []string `json:"tags"`

	// Metadata is an open mapping for caller bookkeeping.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewEntry builds a live entry for key holding the serialized value.
// A ttl of zero means no TTL expiry.
func NewEntry(key Key, value json.RawMessage, ttl time.Duration, tags []string, metadata map[string]string) *Entry {
	now := time.Now()

	entry := &Entry{
		Key:          key.Key,
		HashKey:      key.HashKey,
		Value:        value,
		SizeBytes:    int64(len(value)),
		LastAccessed: now,
		CreatedAt:    now,
		Tags:         tags,
		Metadata:     metadata,
	}

	if ttl > 0 {
		expires := now.Add(ttl)
		entry.ExpiresAt = &expires
	}

	return entry
}

// IsExpired returns true if the entry has TTL-expired.
func (e *Entry) IsExpired() bool {
	return e.ExpiresAt != nil && time.Now().After(*e.ExpiresAt)
}

// TTL returns the time until expiration.
// Returns 0 if already expired or if the entry carries no TTL.
func (e *Entry) TTL() time.Duration {
	if e.ExpiresAt == nil {
		return 0
	}
	ttl := time.Until(*e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Touch records one successful read: increments the access count and moves
// LastAccessed to now. Called exactly once per read that returns the entry.
func (e *Entry) Touch() {
	e.AccessCount++
	e.LastAccessed = time.Now()
}

// HasAnyTag returns true if the entry carries at least one of the given tags.
func (e *Entry) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, tag := range e.Tags {
			if tag == want {
				return true
			}
		}
	}
	return false
}

// Encode serializes the entry into the persisted record format.
func (e *Entry) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry %s: %w", e.HashKey, err)
	}
	return data, nil
}

// DecodeEntry parses a persisted record back into an Entry. The decoded
// access count and timestamps reflect the entry as of encoding time.
func DecodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &entry, nil
}

// clone returns a copy safe to hand out or mutate independently. The Value
// bytes are shared; persisted payloads are treated as immutable.
func (e *Entry) clone() *Entry {
	copied := *e

	if e.ExpiresAt != nil {
		expires := *e.ExpiresAt
		copied.ExpiresAt = &expires
	}
	copied.Tags = append([]string(nil), e.Tags...)
	if e.Metadata != nil {
		copied.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			copied.Metadata[k] = v
		}
	}

	return &copied
}
