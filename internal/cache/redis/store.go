// Package redis implements the L2 distributed tier on a shared Redis
// backend. Keys are namespaced with a configurable prefix so cache entries
// never collide with unrelated data in the same backend, and TTL is
// delegated to Redis's native expiry.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"cache-engine/internal/cache"
	"cache-engine/internal/cache/invalidation"
	"cache-engine/internal/common/errors"
)

// scanCount is the SCAN page size used for pattern enumeration.
const scanCount = 256

// Config holds the Redis tier settings.
type Config struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	PoolSize  int    `json:"pool_size"`
	KeyPrefix string `json:"key_prefix"`
}

// Store is the L2 Redis tier.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New creates an L2 store and verifies connectivity.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.Config("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.BackendUnavailable(string(cache.LevelL2), err)
	}

	return &Store{
		rdb:    rdb,
		prefix: config.KeyPrefix,
	}, nil
}

// Level identifies the tier.
func (s *Store) Level() cache.Level {
	return cache.LevelL2
}

// Get returns the entry for key, updating its access metadata in place while
// preserving the key's remaining TTL.
func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, error) {
	data, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.BackendUnavailable(string(cache.LevelL2), err)
	}

	var entry cache.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, errors.Serialization("corrupt cache envelope for key "+key, err)
	}

	now := time.Now()
	if entry.Expired(now) {
		s.rdb.Del(ctx, s.prefix+key)
		return nil, nil
	}

	entry.Touch(now)
	entry.Level = cache.LevelL2

	// Write the touched envelope back without disturbing the native expiry.
	if updated, err := json.Marshal(&entry); err == nil {
		s.rdb.Set(ctx, s.prefix+key, updated, redis.KeepTTL)
	}

	return &entry, nil
}

// Set stores the entry envelope under the namespaced key with the entry's
// remaining TTL as the native Redis expiry.
func (s *Store) Set(ctx context.Context, entry *cache.Entry) error {
	stored := entry.Clone()
	stored.Level = cache.LevelL2

	data, err := json.Marshal(stored)
	if err != nil {
		return errors.Serialization("failed to encode cache envelope", err)
	}

	ttl := stored.RemainingTTL(time.Now())
	if ttl <= 0 {
		// Already expired; nothing to store.
		return nil
	}

	if err := s.rdb.Set(ctx, s.prefix+stored.Key, data, ttl).Err(); err != nil {
		return errors.BackendUnavailable(string(cache.LevelL2), err)
	}
	return nil
}

// Delete removes an entry and reports whether one existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return false, errors.BackendUnavailable(string(cache.LevelL2), err)
	}
	return n > 0, nil
}

// Contains reports whether a key exists without touching it.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, errors.BackendUnavailable(string(cache.LevelL2), err)
	}
	return n > 0, nil
}

// ScanPattern enumerates matching keys with a prefix SCAN; the namespace
// prefix is stripped from the returned keys.
func (s *Store) ScanPattern(ctx context.Context, pattern string) ([]string, error) {
	if _, err := invalidation.Compile(pattern); err != nil {
		return nil, err
	}

	match := s.prefix + invalidation.RedisPattern(pattern)
	iter := s.rdb.Scan(ctx, 0, match, scanCount).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(s.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, errors.BackendUnavailable(string(cache.LevelL2), err)
	}
	return keys, nil
}

// RemoveExpired is a no-op: Redis expires keys natively.
func (s *Store) RemoveExpired(ctx context.Context, limit int) (int, error) {
	return 0, nil
}

// Stats counts the namespaced keys. Redis does not expose per-key payload
// sizes cheaply, so SizeBytes is left at zero.
func (s *Store) Stats(ctx context.Context) (cache.TierStats, error) {
	var stats cache.TierStats
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		stats.Entries++
	}
	if err := iter.Err(); err != nil {
		return cache.TierStats{}, errors.BackendUnavailable(string(cache.LevelL2), err)
	}
	return stats, nil
}

// Health pings the backend.
func (s *Store) Health(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return errors.BackendUnavailable(string(cache.LevelL2), err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}
