package cache

import (
	"fmt"
	"sort"
	"time"
)

// Policy names accepted by NewPolicy.
const (
	PolicyLRU      = "lru"
	PolicyLFU      = "lfu"
	PolicyAdaptive = "adaptive"
)

// Weights for the adaptive eviction score. The four signals contribute
// equally; tune here without touching the scoring structure.
const (
	adaptiveRecencyWeight   = 1.0
	adaptiveFrequencyWeight = 1.0
	adaptiveSizeWeight      = 1.0
	adaptiveAgeWeight       = 1.0
)

// EvictionPolicy selects entries to remove when the local tier outgrows its
// capacity ceiling. Policies are stateless strategies: a pure function from
// (entries, requiredSpace) to an ordered candidate list.
type EvictionPolicy interface {
	// Name identifies the policy.
	Name() string

	// MaxSizeBytes is the capacity ceiling the policy enforces.
	MaxSizeBytes() int64

	// Candidates returns entries to evict, in eviction order. Expired
	// entries are never candidates; expiry cleanup is a separate, prior
	// step. Selection stops once the cumulative size of selected entries
	// reaches requiredSpace. If all non-expired entries together fall
	// short, every one of them is returned.
	Candidates(entries []*Entry, requiredSpace int64) []*Entry
}

// NewPolicy builds the named eviction policy.
func NewPolicy(name string, maxSizeBytes int64) (EvictionPolicy, error) {
	switch name {
	case PolicyLRU:
		return NewLRUPolicy(maxSizeBytes), nil
	case PolicyLFU:
		return NewLFUPolicy(maxSizeBytes), nil
	case PolicyAdaptive:
		return NewAdaptivePolicy(maxSizeBytes), nil
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", name)
	}
}

// selectByOrder filters expired entries, stable-sorts the remainder by less,
// and selects from the front until the cumulative size covers requiredSpace.
// The stable sort keeps eviction deterministic when entries tie.
func selectByOrder(entries []*Entry, requiredSpace int64, less func(a, b *Entry) bool) []*Entry {
	live := make([]*Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsExpired() {
			continue
		}
		live = append(live, entry)
	}

	sort.SliceStable(live, func(i, j int) bool { return less(live[i], live[j]) })

	var (
		selected []*Entry
		freed    int64
	)
	for _, entry := range live {
		if freed >= requiredSpace {
			break
		}
		selected = append(selected, entry)
		freed += entry.SizeBytes
	}
	return selected
}

// LRUPolicy evicts the least recently accessed entries first.
type LRUPolicy struct {
	maxSizeBytes int64
}

// NewLRUPolicy creates an LRU policy with the given capacity ceiling.
func NewLRUPolicy(maxSizeBytes int64) *LRUPolicy {
	return &LRUPolicy{maxSizeBytes: maxSizeBytes}
}

// Name identifies the policy.
func (p *LRUPolicy) Name() string { return PolicyLRU }

// MaxSizeBytes is the capacity ceiling the policy enforces.
func (p *LRUPolicy) MaxSizeBytes() int64 { return p.maxSizeBytes }

// Candidates returns non-expired entries ordered by LastAccessed ascending.
func (p *LRUPolicy) Candidates(entries []*Entry, requiredSpace int64) []*Entry {
	return selectByOrder(entries, requiredSpace, func(a, b *Entry) bool {
		return a.LastAccessed.Before(b.LastAccessed)
	})
}

// LFUPolicy evicts the least frequently accessed entries first.
type LFUPolicy struct {
	maxSizeBytes int64
}

// NewLFUPolicy creates an LFU policy with the given capacity ceiling.
func NewLFUPolicy(maxSizeBytes int64) *LFUPolicy {
	return &LFUPolicy{maxSizeBytes: maxSizeBytes}
}

// Name identifies the policy.
func (p *LFUPolicy) Name() string { return PolicyLFU }

// MaxSizeBytes is the capacity ceiling the policy enforces.
func (p *LFUPolicy) MaxSizeBytes() int64 { return p.maxSizeBytes }

// Candidates returns non-expired entries ordered by AccessCount ascending.
func (p *LFUPolicy) Candidates(entries []*Entry, requiredSpace int64) []*Entry {
	return selectByOrder(entries, requiredSpace, func(a, b *Entry) bool {
		return a.AccessCount < b.AccessCount
	})
}

// AdaptivePolicy blends recency, frequency, size, and age into a single
// score so that large, stale, rarely used entries are evicted before small,
// hot, recently created ones.
type AdaptivePolicy struct {
	maxSizeBytes int64
}

// NewAdaptivePolicy creates an adaptive policy with the given capacity ceiling.
func NewAdaptivePolicy(maxSizeBytes int64) *AdaptivePolicy {
	return &AdaptivePolicy{maxSizeBytes: maxSizeBytes}
}

// Name identifies the policy.
func (p *AdaptivePolicy) Name() string { return PolicyAdaptive }

// MaxSizeBytes is the capacity ceiling the policy enforces.
func (p *AdaptivePolicy) MaxSizeBytes() int64 { return p.maxSizeBytes }

// Candidates returns non-expired entries ordered by eviction score
// descending (highest score evicted first).
func (p *AdaptivePolicy) Candidates(entries []*Entry, requiredSpace int64) []*Entry {
	// One clock reading for the whole sort keeps the comparator consistent
	now := time.Now()
	return selectByOrder(entries, requiredSpace, func(a, b *Entry) bool {
		return adaptiveScore(a, now) > adaptiveScore(b, now)
	})
}

// adaptiveScore rates an entry for eviction. Higher scores evict first.
func adaptiveScore(e *Entry, now time.Time) float64 {
	hoursSinceAccess := now.Sub(e.LastAccessed).Hours()
	frequency := 1.0 / float64(e.AccessCount+1)
	sizeMB := float64(e.SizeBytes) / (1024 * 1024)
	ageDays := now.Sub(e.CreatedAt).Hours() / 24

	return adaptiveRecencyWeight*hoursSinceAccess +
		adaptiveFrequencyWeight*frequency +
		adaptiveSizeWeight*sizeMB +
		adaptiveAgeWeight*ageDays
}
