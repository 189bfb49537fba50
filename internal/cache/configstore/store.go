// Package configstore holds the engine's live-reloadable tunables. Updates
// are applied as an atomic snapshot swap: readers always observe either the
// old or the new configuration in full, never a torn mix, and reads are
// wait-free.
package configstore

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cache-engine/internal/common/errors"
)

// TierConfig holds the per-tier tunables.
type TierConfig struct {
	Enabled        bool          `json:"enabled"`
	MaxCapacity    int           `json:"max_capacity"`
	MaxSizeMB      int           `json:"max_size_mb"`
	DefaultTTL     time.Duration `json:"-"`
	IdleTimeout    time.Duration `json:"-"`
	EvictionPolicy string        `json:"eviction_policy"`
}

// Settings is one immutable configuration snapshot.
type Settings struct {
	L1 TierConfig `json:"l1"`
	L2 TierConfig `json:"l2"`
	L3 TierConfig `json:"l3"`

	CompressionAlgorithm string `json:"compression_algorithm"`
	CompressionMinBytes  int    `json:"compression_min_bytes"`
	SerializationFormat  string `json:"serialization_format"`
	MaxEntrySizeMB       int    `json:"max_entry_size_mb"`

	SweepInterval     time.Duration `json:"-"`
	L3CleanupInterval time.Duration `json:"-"`
	L3CleanupBatch    int           `json:"l3_cleanup_batch"`
	PromoteFromL3     bool          `json:"promote_from_l3"`
}

// Validate rejects a snapshot with invalid values. An invalid snapshot is
// never applied, even partially.
func (s *Settings) Validate() error {
	if !s.L1.Enabled && !s.L2.Enabled && !s.L3.Enabled {
		return errors.Config("at least one cache tier must be enabled")
	}
	if s.L1.Enabled {
		if s.L1.MaxCapacity < 1 {
			return errors.Config("l1 max_capacity must be positive")
		}
		if s.L1.MaxSizeMB < 1 {
			return errors.Config("l1 max_size_mb must be positive")
		}
	}
	if s.MaxEntrySizeMB < 1 {
		return errors.Config("max_entry_size_mb must be positive")
	}
	if s.CompressionMinBytes < 0 {
		return errors.Config("compression_min_bytes must not be negative")
	}
	switch s.CompressionAlgorithm {
	case "none", "fast", "balanced", "max":
	default:
		return errors.Config(fmt.Sprintf("unknown compression algorithm: %s", s.CompressionAlgorithm))
	}
	switch s.SerializationFormat {
	case "json", "gob":
	default:
		return errors.Config(fmt.Sprintf("unknown serialization format: %s", s.SerializationFormat))
	}
	if s.L3CleanupBatch < 1 {
		return errors.Config("l3_cleanup_batch must be positive")
	}
	if s.SweepInterval <= 0 {
		return errors.Config("sweep_interval must be positive")
	}
	if s.L3CleanupInterval <= 0 {
		return errors.Config("l3_cleanup_interval must be positive")
	}
	for _, tier := range []TierConfig{s.L1, s.L2, s.L3} {
		if tier.EvictionPolicy != "" && tier.EvictionPolicy != "lru" {
			return errors.Config(fmt.Sprintf("unsupported eviction policy: %s", tier.EvictionPolicy))
		}
	}
	return nil
}

// MaxEntrySizeBytes returns the global per-entry size limit in bytes.
func (s *Settings) MaxEntrySizeBytes() int64 {
	return int64(s.MaxEntrySizeMB) * 1024 * 1024
}

// TierFor returns the tier config for a level name ("L1_MEMORY" etc.).
func (s *Settings) TierFor(level string) *TierConfig {
	switch level {
	case "L1_MEMORY":
		return &s.L1
	case "L2_REDIS":
		return &s.L2
	case "L3_PERSISTENT":
		return &s.L3
	default:
		return nil
	}
}

// Store serves immutable configuration snapshots.
type Store struct {
	current atomic.Pointer[Settings]

	mu       sync.Mutex
	watchers []chan struct{}
}

// New creates a Store with an initial, validated snapshot.
func New(initial Settings) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &Store{}
	s.current.Store(&initial)
	return s, nil
}

// Snapshot returns the current settings. The returned value must be treated
// as read-only; it is shared by every concurrent reader.
func (s *Store) Snapshot() *Settings {
	return s.current.Load()
}

// Update validates and atomically swaps in a new snapshot. It reports
// whether the update touched a structural field (tier enablement), which
// only takes effect on restart because tier clients are constructed at
// startup.
func (s *Store) Update(next Settings) (restartRequired bool, err error) {
	if err := next.Validate(); err != nil {
		return false, err
	}

	prev := s.current.Load()
	restartRequired = prev.L1.Enabled != next.L1.Enabled ||
		prev.L2.Enabled != next.L2.Enabled ||
		prev.L3.Enabled != next.L3.Enabled

	s.current.Store(&next)
	s.notify()
	return restartRequired, nil
}

// Watch returns a channel that receives a signal after every applied update.
// The channel is buffered with one slot, so a slow receiver coalesces bursts
// instead of blocking the updater.
func (s *Store) Watch() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
