package types

import (
	"time"
)

// Entry represents a single cached value together with the bookkeeping the
// eviction and expiry policies need. Each tier owns its entries exclusively;
// promoting a value into another tier copies it, it never shares the entry.
type Entry struct {
	Key            string        `json:"key"`
	Value          interface{}   `json:"value"`
	InsertedAt     time.Time     `json:"inserted_at"`
	LastAccessedAt time.Time     `json:"last_accessed_at"`
	TTL            time.Duration `json:"ttl"`
}

// Expired reports whether the entry's TTL has elapsed at the given time.
// A zero TTL means the entry never expires.
func (e *Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.InsertedAt) > e.TTL
}

// Touch refreshes the entry's recency for access-order LRU.
func (e *Entry) Touch(now time.Time) {
	e.LastAccessedAt = now
}

// WarmEntry is a single key/value pair handed to the cache warmer.
type WarmEntry struct {
	Key   string        `json:"key"`
	Value interface{}   `json:"value"`
	TTL   time.Duration `json:"ttl,omitempty"`
}

// Metrics is a point-in-time snapshot of cache performance. Counters are
// monotonically non-decreasing between explicit resets; latency averages are
// incremental means so no sample history is retained.
type Metrics struct {
	L1Hits        uint64        `json:"l1_hits"`
	L1Misses      uint64        `json:"l1_misses"`
	L2Hits        uint64        `json:"l2_hits"`
	L2Misses      uint64        `json:"l2_misses"`
	TotalRequests uint64        `json:"total_requests"`
	AvgL1Latency  time.Duration `json:"avg_l1_latency"`
	AvgL2Latency  time.Duration `json:"avg_l2_latency"`

	// Derived rates, 0 when the denominator is 0.
	HitRate   float64 `json:"hit_rate"`
	L1HitRate float64 `json:"l1_hit_rate"`
	L2HitRate float64 `json:"l2_hit_rate"`
}

// TierSizes reports occupancy and configured capacity per tier. L2MaxSize is
// a logical capacity carried for reporting only; the remote tier owns its own
// eviction.
type TierSizes struct {
	L1Size    int `json:"l1_size"`
	L1MaxSize int `json:"l1_max_size"`
	L2MaxSize int `json:"l2_max_size"`
}
