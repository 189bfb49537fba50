package cache

import (
	"time"

	"cache-engine/internal/cache/codec"
)

// EntryMetadata is the read-only view of an entry returned to callers.
type EntryMetadata struct {
	Level                Level           `json:"level"`
	TypeTag              string          `json:"type_tag,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	LastAccessedAt       time.Time       `json:"last_accessed_at"`
	AccessCount          int64           `json:"access_count"`
	TTLSeconds           int64           `json:"ttl_seconds"`
	ExpiresAt            time.Time       `json:"expires_at"`
	SizeBytes            int64           `json:"size_bytes"`
	Compressed           bool            `json:"compressed"`
	CompressionAlgorithm codec.Algorithm `json:"compression_algorithm,omitempty"`
	CompressionRatio     float64         `json:"compression_ratio,omitempty"`
	SerializationFormat  codec.Format    `json:"serialization_format"`
	Tags                 []string        `json:"tags,omitempty"`
}

func metadataFrom(entry *Entry) *EntryMetadata {
	return &EntryMetadata{
		Level:                entry.Level,
		TypeTag:              entry.TypeTag,
		CreatedAt:            entry.CreatedAt,
		LastAccessedAt:       entry.LastAccessedAt,
		AccessCount:          entry.AccessCount,
		TTLSeconds:           int64(entry.TTL / time.Second),
		ExpiresAt:            entry.ExpiresAt,
		SizeBytes:            entry.SizeBytes,
		Compressed:           entry.Compressed,
		CompressionAlgorithm: entry.CompressionAlgorithm,
		CompressionRatio:     entry.CompressionRatio,
		SerializationFormat:  entry.SerializationFormat,
		Tags:                 entry.Tags,
	}
}

// GetResult is the aggregate outcome of a tiered lookup.
type GetResult struct {
	Found      bool             `json:"found"`
	Key        string           `json:"key"`
	Value      interface{}      `json:"value,omitempty"`
	Metadata   *EntryMetadata   `json:"metadata,omitempty"`
	TierErrors map[Level]string `json:"tier_errors,omitempty"`
}

// SetOptions controls a write.
type SetOptions struct {
	// TTL is the entry's time-to-live; zero selects the targeted tiers'
	// default.
	TTL time.Duration
	// Tags are attached for grouped invalidation.
	Tags []string
	// Levels restricts the write to a subset of tiers; empty fans out to
	// every enabled tier.
	Levels []Level
	// Format overrides the global serialization format.
	Format codec.Format
	// TypeTag is the caller's opaque logical type label.
	TypeTag string
	// DisableCompression skips compression for this write.
	DisableCompression bool
}

// TierFailure records a single tier's write failure.
type TierFailure struct {
	Level Level  `json:"level"`
	Error string `json:"error"`
}

// SetResult is the aggregate outcome of a fan-out write. The write succeeded
// if at least one targeted tier stored the entry; Failures carries the
// others.
type SetResult struct {
	Key                  string          `json:"key"`
	LevelsStored         []Level         `json:"levels_stored"`
	Failures             []TierFailure   `json:"failures,omitempty"`
	SizeBytes            int64           `json:"size_bytes"`
	Compressed           bool            `json:"compressed"`
	CompressionAlgorithm codec.Algorithm `json:"compression_algorithm,omitempty"`
	ExpiresAt            time.Time       `json:"expires_at"`
	Created              bool            `json:"created"`
}

// DeleteResult reports which tiers held the key. Deleting an absent key is a
// success with an empty DeletedFrom.
type DeleteResult struct {
	Key         string           `json:"key"`
	DeletedFrom []Level          `json:"deleted_from_levels"`
	TierErrors  map[Level]string `json:"tier_errors,omitempty"`
}

// InvalidateResult reports exact removal tallies per tier and in aggregate.
type InvalidateResult struct {
	Pattern    string           `json:"pattern"`
	Count      int              `json:"invalidated_count"`
	PerLevel   map[Level]int    `json:"per_level"`
	TierErrors map[Level]string `json:"tier_errors,omitempty"`
}

// TierStatus is one tier's health snapshot.
type TierStatus struct {
	Level     Level  `json:"level"`
	Enabled   bool   `json:"enabled"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	Entries   int64  `json:"entries"`
	SizeBytes int64  `json:"size_bytes"`
}

// StatusReport aggregates per-tier health with the manager's hit statistics.
type StatusReport struct {
	Healthy  bool         `json:"healthy"`
	Hits     int64        `json:"hits"`
	Misses   int64        `json:"misses"`
	HitRatio float64      `json:"hit_ratio"`
	Tiers    []TierStatus `json:"tiers"`
}
