package cache

import "context"

// TierStats reports the live entry count and payload volume of a tier.
type TierStats struct {
	Entries   int64 `json:"entries"`
	SizeBytes int64 `json:"size_bytes"`
}

// Store is the common capability contract every tier implements. The manager
// is tier-agnostic: it only ever talks to tiers through this interface, and
// the tiers form a closed set (L1 memory, L2 Redis, L3 SQL), not an open
// plugin hierarchy.
//
// Get returns (nil, nil) on a miss; errors signal tier trouble, not absence.
type Store interface {
	// Level identifies the tier.
	Level() Level

	// Get returns the entry for key, or (nil, nil) when absent or expired.
	// Implementations update access metadata on a hit.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores an entry, replacing any existing entry for the same key.
	Set(ctx context.Context, entry *Entry) error

	// Delete removes an entry and reports whether one existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Contains reports whether a live entry exists without touching its
	// access metadata.
	Contains(ctx context.Context, key string) (bool, error)

	// ScanPattern returns the live keys matching a glob pattern, using the
	// tier's native enumeration mechanism.
	ScanPattern(ctx context.Context, pattern string) ([]string, error)

	// RemoveExpired purges up to limit expired entries and returns how many
	// were removed. Tiers with native expiry may return (0, nil).
	RemoveExpired(ctx context.Context, limit int) (int, error)

	// Stats returns the tier's live entry count and size.
	Stats(ctx context.Context) (TierStats, error)

	// Health reports whether the tier is reachable.
	Health(ctx context.Context) error

	// Close releases the tier's resources.
	Close() error
}

// Resizer is implemented by tiers whose capacity bounds can change without a
// restart. The manager re-applies the bounds after every configuration
// update.
type Resizer interface {
	Resize(maxCapacity int, maxSizeBytes int64)
}
