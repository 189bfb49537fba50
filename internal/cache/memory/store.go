// Package memory implements the L1 in-process tier: a bounded store with
// O(1) get/set/evict and least-recently-used eviction. The key space is
// sharded across independently locked partitions so no single lock guards
// the whole tier.
package memory

import (
	"container/list"
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"cache-engine/internal/cache"
	"cache-engine/internal/cache/invalidation"
	"cache-engine/internal/common/errors"
)

// Config holds the L1 tier bounds.
type Config struct {
	// MaxCapacity is the maximum entry count across all shards
	MaxCapacity int
	// MaxSizeBytes is the maximum total payload size across all shards
	MaxSizeBytes int64
	// Shards is the number of locked partitions
	Shards int
	// OnEvict, when set, is called after an entry is evicted under
	// capacity pressure (not on expiry or explicit deletes)
	OnEvict func(*cache.Entry)
}

// Store is the L1 memory tier.
type Store struct {
	shards  []*shard
	onEvict func(*cache.Entry)
}

type shard struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int64
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	bytes      int64
	onEvict    func(*cache.Entry)
}

// New creates an L1 store. The capacity and byte budgets are divided evenly
// across shards.
func New(cfg Config) *Store {
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	if cfg.MaxCapacity < 1 {
		cfg.MaxCapacity = 1
	}

	perShardEntries := cfg.MaxCapacity / cfg.Shards
	if perShardEntries < 1 {
		perShardEntries = 1
	}
	perShardBytes := cfg.MaxSizeBytes / int64(cfg.Shards)

	s := &Store{
		shards:  make([]*shard, cfg.Shards),
		onEvict: cfg.OnEvict,
	}
	for i := range s.shards {
		s.shards[i] = &shard{
			maxEntries: perShardEntries,
			maxBytes:   perShardBytes,
			entries:    make(map[string]*list.Element),
			lru:        list.New(),
			onEvict:    cfg.OnEvict,
		}
	}
	return s
}

// Level identifies the tier.
func (s *Store) Level() cache.Level {
	return cache.LevelL1
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get returns a copy of the entry for key, updating its access metadata and
// LRU position. Returning a copy means an eviction never invalidates bytes a
// reader already holds.
func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	elem, ok := sh.entries[key]
	if !ok {
		return nil, nil
	}

	entry := elem.Value.(*cache.Entry)
	if entry.Expired(time.Now()) {
		sh.remove(elem)
		return nil, nil
	}

	entry.Touch(time.Now())
	sh.lru.MoveToFront(elem)
	return entry.Clone(), nil
}

// Set stores a copy of the entry, evicting least-recently-used entries first
// when the insertion would exceed the shard's entry or byte budget. An entry
// that alone exceeds the shard byte budget is rejected before any eviction,
// so it can never drain a shard only to overflow it anyway.
func (s *Store) Set(ctx context.Context, entry *cache.Entry) error {
	stored := entry.Clone()
	stored.Level = cache.LevelL1

	sh := s.shardFor(entry.Key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.maxBytes > 0 && stored.SizeBytes > sh.maxBytes {
		return errors.Validation(fmt.Sprintf(
			"entry of %d bytes cannot fit the %d byte tier budget", stored.SizeBytes, sh.maxBytes))
	}

	if elem, ok := sh.entries[stored.Key]; ok {
		sh.remove(elem)
	}

	for sh.lru.Len() > 0 &&
		(sh.lru.Len() >= sh.maxEntries || (sh.maxBytes > 0 && sh.bytes+stored.SizeBytes > sh.maxBytes)) {
		sh.evictOldest()
	}

	elem := sh.lru.PushFront(stored)
	sh.entries[stored.Key] = elem
	sh.bytes += stored.SizeBytes
	return nil
}

// Resize applies new capacity and byte budgets, re-dividing them across the
// shards and evicting least-recently-used entries from any shard now over
// budget. Safe to call while the store serves traffic.
func (s *Store) Resize(maxCapacity int, maxSizeBytes int64) {
	if maxCapacity < 1 {
		maxCapacity = 1
	}
	perShardEntries := maxCapacity / len(s.shards)
	if perShardEntries < 1 {
		perShardEntries = 1
	}
	perShardBytes := maxSizeBytes / int64(len(s.shards))

	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.maxEntries = perShardEntries
		sh.maxBytes = perShardBytes
		for sh.lru.Len() > sh.maxEntries || (sh.maxBytes > 0 && sh.bytes > sh.maxBytes) {
			sh.evictOldest()
		}
		sh.mu.Unlock()
	}
}

// Delete removes an entry and reports whether one existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	elem, ok := sh.entries[key]
	if !ok {
		return false, nil
	}
	sh.remove(elem)
	return true, nil
}

// Contains reports whether a live entry exists without touching it.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	elem, ok := sh.entries[key]
	if !ok {
		return false, nil
	}
	if elem.Value.(*cache.Entry).Expired(time.Now()) {
		sh.remove(elem)
		return false, nil
	}
	return true, nil
}

// ScanPattern enumerates all live keys matching a glob pattern.
func (s *Store) ScanPattern(ctx context.Context, pattern string) ([]string, error) {
	p, err := invalidation.Compile(pattern)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var keys []string
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, elem := range sh.entries {
			if elem.Value.(*cache.Entry).Expired(now) {
				continue
			}
			if p.Match(key) {
				keys = append(keys, key)
			}
		}
		sh.mu.Unlock()
	}
	return keys, nil
}

// RemoveExpired purges up to limit expired entries across the shards.
func (s *Store) RemoveExpired(ctx context.Context, limit int) (int, error) {
	now := time.Now()
	removed := 0
	for _, sh := range s.shards {
		if removed >= limit {
			break
		}
		sh.mu.Lock()
		for _, elem := range sh.entries {
			if removed >= limit {
				break
			}
			if elem.Value.(*cache.Entry).Expired(now) {
				sh.remove(elem)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Stats returns the live entry count and payload volume.
func (s *Store) Stats(ctx context.Context) (cache.TierStats, error) {
	var stats cache.TierStats
	for _, sh := range s.shards {
		sh.mu.Lock()
		stats.Entries += int64(sh.lru.Len())
		stats.SizeBytes += sh.bytes
		sh.mu.Unlock()
	}
	return stats, nil
}

// Health always succeeds: the tier lives in-process.
func (s *Store) Health(ctx context.Context) error {
	return nil
}

// Close releases the store.
func (s *Store) Close() error {
	return nil
}

// remove unlinks an element. Caller holds the shard lock.
func (sh *shard) remove(elem *list.Element) {
	entry := elem.Value.(*cache.Entry)
	sh.lru.Remove(elem)
	delete(sh.entries, entry.Key)
	sh.bytes -= entry.SizeBytes
}

// evictOldest removes the least-recently-used entry. Caller holds the shard
// lock.
func (sh *shard) evictOldest() {
	elem := sh.lru.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*cache.Entry)
	sh.remove(elem)
	if sh.onEvict != nil {
		sh.onEvict(entry)
	}
}
