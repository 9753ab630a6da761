package cache

import (
	"sync/atomic"
	"time"
)

// Stats tracks running counters for one Storage instance. Counters are
// updated atomically by every storage operation. totalSize and entryCount
// cover only the local tier of the owning Storage, so the numbers are
// per-process, never cluster-wide.
type Stats struct {
	hits          int64
	misses        int64
	evictions     int64
	invalidations int64
	totalSize     int64
	entryCount    int64
	startTime     time.Time
}

// StatsSnapshot is a point-in-time view of cache statistics, including
// derived fields.
type StatsSnapshot struct {
	Hits              int64   `json:"hits"`
	Misses            int64   `json:"misses"`
	Evictions         int64   `json:"evictions"`
	Invalidations     int64   `json:"invalidations"`
	TotalSizeBytes    int64   `json:"total_size_bytes"`
	EntryCount        int64   `json:"entry_count"`
	HitRatio          float64 `json:"hit_ratio"`
	TotalRequests     int64   `json:"total_requests"`
	AvgEntrySizeBytes float64 `json:"avg_entry_size_bytes"`
	RequestsPerHour   float64 `json:"requests_per_hour"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewStats creates zeroed statistics anchored at the current time.
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

// RecordHit counts one successful read.
func (s *Stats) RecordHit() {
	atomic.AddInt64(&s.hits, 1)
}

// RecordMiss counts one read that found nothing.
func (s *Stats) RecordMiss() {
	atomic.AddInt64(&s.misses, 1)
}

// RecordStore counts one entry of sizeBytes entering the local tier.
func (s *Stats) RecordStore(sizeBytes int64) {
	atomic.AddInt64(&s.totalSize, sizeBytes)
	atomic.AddInt64(&s.entryCount, 1)
}

// RecordEviction counts one entry of sizeBytes leaving the local tier under
// capacity pressure.
func (s *Stats) RecordEviction(sizeBytes int64) {
	atomic.AddInt64(&s.evictions, 1)
	s.recordRemoval(sizeBytes)
}

// RecordInvalidation counts one entry of sizeBytes leaving the local tier by
// explicit delete, tag invalidation, or expiry.
func (s *Stats) RecordInvalidation(sizeBytes int64) {
	atomic.AddInt64(&s.invalidations, 1)
	s.recordRemoval(sizeBytes)
}

// recordRemoval adjusts size and count for an entry leaving the local tier
// without attributing the removal to any named counter. Used when a store
// displaces an already-resident entry.
func (s *Stats) recordRemoval(sizeBytes int64) {
	atomic.AddInt64(&s.totalSize, -sizeBytes)
	atomic.AddInt64(&s.entryCount, -1)
}

// Hits returns the hit counter.
func (s *Stats) Hits() int64 { return atomic.LoadInt64(&s.hits) }

// Misses returns the miss counter.
func (s *Stats) Misses() int64 { return atomic.LoadInt64(&s.misses) }

// Evictions returns the eviction counter.
func (s *Stats) Evictions() int64 { return atomic.LoadInt64(&s.evictions) }

// Invalidations returns the invalidation counter.
func (s *Stats) Invalidations() int64 { return atomic.LoadInt64(&s.invalidations) }

// TotalSize returns the byte size of all entries resident in the local tier.
func (s *Stats) TotalSize() int64 { return atomic.LoadInt64(&s.totalSize) }

// EntryCount returns the number of entries resident in the local tier.
func (s *Stats) EntryCount() int64 { return atomic.LoadInt64(&s.entryCount) }

// HitRatio returns hits/(hits+misses), or 0.0 before any request.
func (s *Stats) HitRatio() float64 {
	hits := s.Hits()
	total := hits + s.Misses()
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

// Snapshot captures the current counters plus derived fields. Counters are
// read individually, so a snapshot taken under concurrent traffic is
// consistent per field, not across fields.
func (s *Stats) Snapshot() StatsSnapshot {
	hits := s.Hits()
	misses := s.Misses()
	totalSize := s.TotalSize()
	entryCount := s.EntryCount()
	totalRequests := hits + misses
	elapsed := time.Since(s.startTime)

	avgSize := 0.0
	if entryCount > 0 {
		avgSize = float64(totalSize) / float64(entryCount)
	}

	perHour := 0.0
	if elapsed > 0 {
		perHour = float64(totalRequests) / elapsed.Hours()
	}

	return StatsSnapshot{
		Hits:              hits,
		Misses:            misses,
		Evictions:         s.Evictions(),
		Invalidations:     s.Invalidations(),
		TotalSizeBytes:    totalSize,
		EntryCount:        entryCount,
		HitRatio:          s.HitRatio(),
		TotalRequests:     totalRequests,
		AvgEntrySizeBytes: avgSize,
		RequestsPerHour:   perHour,
		UptimeSeconds:     elapsed.Seconds(),
	}
}
