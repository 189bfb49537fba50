// Package cache implements the multi-level cache engine: the tier store
// contract, the cache entry model and the manager that orchestrates lookups,
// writes, invalidation and warming across the tiers.
package cache

import (
	"time"

	"cache-engine/internal/cache/codec"
)

// Level identifies a storage tier, ordered by ascending latency and capacity.
type Level string

const (
	// LevelL1 is the in-process memory tier
	LevelL1 Level = "L1_MEMORY"
	// LevelL2 is the shared Redis tier
	LevelL2 Level = "L2_REDIS"
	// LevelL3 is the durable SQL tier
	LevelL3 Level = "L3_PERSISTENT"
)

// AllLevels returns the tiers ordered fastest first.
func AllLevels() []Level {
	return []Level{LevelL1, LevelL2, LevelL3}
}

// ParseLevel converts a string into a Level.
func ParseLevel(s string) (Level, bool) {
	switch Level(s) {
	case LevelL1, LevelL2, LevelL3:
		return Level(s), true
	default:
		return "", false
	}
}

// Entry is a cache entry as stored in a tier. Value holds the encoded (and
// possibly compressed) payload; the codec fields describe how to get the
// original value back. The same entry may be mirrored across tiers.
type Entry struct {
	Key                  string          `json:"key"`
	Value                []byte          `json:"value"`
	TypeTag              string          `json:"type_tag,omitempty"`
	Level                Level           `json:"level"`
	CreatedAt            time.Time       `json:"created_at"`
	LastAccessedAt       time.Time       `json:"last_accessed_at"`
	AccessCount          int64           `json:"access_count"`
	TTL                  time.Duration   `json:"ttl"`
	ExpiresAt            time.Time       `json:"expires_at"`
	SizeBytes            int64           `json:"size_bytes"`
	Compressed           bool            `json:"compressed"`
	CompressionAlgorithm codec.Algorithm `json:"compression_algorithm,omitempty"`
	CompressionRatio     float64         `json:"compression_ratio,omitempty"`
	SerializationFormat  codec.Format    `json:"serialization_format"`
	Tags                 []string        `json:"tags,omitempty"`
}

// Expired reports whether the entry's TTL has elapsed at the given instant.
// An expired entry is logically absent even before a sweep removes it.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// RemainingTTL returns the time left until expiry, or zero for an expired
// entry.
func (e *Entry) RemainingTTL(now time.Time) time.Duration {
	if e.ExpiresAt.IsZero() {
		return e.TTL
	}
	remaining := e.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Touch records a successful read for LRU ordering and promotion decisions.
func (e *Entry) Touch(now time.Time) {
	e.LastAccessedAt = now
	e.AccessCount++
}

// Clone returns a deep copy of the entry. Tiers store and return clones so
// an eviction never invalidates bytes a reader already holds.
func (e *Entry) Clone() *Entry {
	clone := *e
	if e.Value != nil {
		clone.Value = make([]byte, len(e.Value))
		copy(clone.Value, e.Value)
	}
	if e.Tags != nil {
		clone.Tags = make([]string, len(e.Tags))
		copy(clone.Tags, e.Tags)
	}
	return &clone
}
