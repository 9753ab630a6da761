package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Type partitions the key space by the kind of cached artifact. The set is
// closed; free-form variation belongs in tags, not here.
type Type string

// Cache types.
const (
	TypeResponse    Type = "response"
	TypeEmbedding   Type = "embedding"
	TypeModel       Type = "model"
	TypeSession     Type = "session"
	TypeComputation Type = "computation"
)

// hashKeyLen is the hex length of the digest used as the storage key.
const hashKeyLen = 16

// Key identifies a cached value. The composite Key string is human-readable;
// HashKey is the short digest actually used as the storage key in both tiers.
// Keys are value objects: built fresh per lookup, never mutated, never
// persisted on their own.
type Key struct {
	// Key is the composite string "{namespace}:{type}:name=value:...".
	Key string

	// HashKey is the first 16 hex characters of SHA-256 over Key.
	HashKey string

	// Namespace scopes the key (e.g. "agent:researcher-1", "embeddings").
	Namespace string

	// Type is the cache-type tag.
	Type Type

	// CreatedAt is when this Key value was built.
	CreatedAt time.Time
}

// NewKey builds a deterministic Key from a namespace, a cache type, and named
// components. Component names are sorted before joining, so construction
// order never changes the digest: identical inputs yield identical HashKeys
// across processes and restarts, which is what lets the digest serve as the
// storage key in the shared tier.
func NewKey(namespace string, typ Type, components map[string]string) Key {
	parts := []string{namespace, string(typ)}

	if len(components) > 0 {
		names := make([]string, 0, len(components))
		for name := range components {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, components[name]))
		}
	}

	composite := strings.Join(parts, ":")

	return Key{
		Key:       composite,
		HashKey:   digest(composite),
		Namespace: namespace,
		Type:      typ,
		CreatedAt: time.Now(),
	}
}

// String returns the human-readable composite key.
func (k Key) String() string {
	return k.Key
}

// digest returns the first hashKeyLen hex characters of SHA-256 over s.
func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashKeyLen]
}

// HashText returns the digest used for free-form text components such as
// prompts and embedding inputs, keeping arbitrarily long text out of the
// composite key string.
func HashText(text string) string {
	return digest(text)
}

// HashParams returns a deterministic digest of an arbitrary parameter map.
// Encoding goes through canonical JSON, which sorts map keys, so logically
// equal parameter sets hash identically regardless of construction order.
func HashParams(params map[string]any) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Values that defeat JSON fall back to fmt, which also renders
		// maps in sorted key order
		data = []byte(fmt.Sprintf("%v", params))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:hashKeyLen]
}
