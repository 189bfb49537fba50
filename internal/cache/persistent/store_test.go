package persistent

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cache-engine/internal/cache"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(&Config{
		Driver: DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "cache.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func testEntry(key, value string, ttl time.Duration) *cache.Entry {
	now := time.Now().UTC()
	return &cache.Entry{
		Key:            key,
		Value:          []byte(value),
		Level:          cache.LevelL3,
		CreatedAt:      now,
		LastAccessedAt: now,
		TTL:            ttl,
		ExpiresAt:      now.Add(ttl),
		SizeBytes:      int64(len(value)),
		Tags:           []string{"test"},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"sqlite with path", Config{Driver: DriverSQLite, Path: "/tmp/x.db"}, false},
		{"sqlite without path", Config{Driver: DriverSQLite}, true},
		{"postgres complete", Config{Driver: DriverPostgres, Host: "db", Database: "cache", User: "app"}, false},
		{"postgres without host", Config{Driver: DriverPostgres, Database: "cache", User: "app"}, true},
		{"unknown driver", Config{Driver: "oracle"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSetGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := testEntry("user:1", "alice", time.Minute)
	entry.TypeTag = "user_profile"
	entry.SerializationFormat = "json"
	require.NoError(t, store.Set(ctx, entry))

	got, err := store.Get(ctx, "user:1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("alice"), got.Value)
	assert.Equal(t, "user_profile", got.TypeTag)
	assert.Equal(t, cache.LevelL3, got.Level)
	assert.Equal(t, []string{"test"}, got.Tags)
	assert.Equal(t, time.Minute, got.TTL)
}

func TestGetMiss(t *testing.T) {
	store := newTestStore(t)

	entry, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestGetBumpsAccessCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, testEntry("user:1", "alice", time.Minute)))

	first, err := store.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.AccessCount)

	second, err := store.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.AccessCount)
}

func TestGetExpiredRowRemoved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := testEntry("user:1", "alice", time.Minute)
	entry.ExpiresAt = time.Now().UTC().Add(-time.Second)
	require.NoError(t, store.Set(ctx, entry))

	got, err := store.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// The expired row was deleted opportunistically
	ok, err := store.Contains(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, testEntry("user:1", "alice", time.Minute)))
	require.NoError(t, store.Set(ctx, testEntry("user:1", "alice-v2", time.Hour)))

	got, err := store.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("alice-v2"), got.Value)
	assert.Equal(t, time.Hour, got.TTL)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, testEntry("user:1", "alice", time.Minute)))

	existed, err := store.Delete(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestContainsIgnoresExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := testEntry("user:1", "alice", time.Minute)
	entry.ExpiresAt = time.Now().UTC().Add(-time.Second)
	require.NoError(t, store.Set(ctx, entry))

	ok, err := store.Contains(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScanPattern(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Set(ctx, testEntry(fmt.Sprintf("user:%d", i), "x", time.Minute)))
	}
	require.NoError(t, store.Set(ctx, testEntry("session:1", "y", time.Minute)))

	expired := testEntry("user:expired", "z", time.Minute)
	expired.ExpiresAt = time.Now().UTC().Add(-time.Second)
	require.NoError(t, store.Set(ctx, expired))

	keys, err := store.ScanPattern(ctx, "user:*")
	require.NoError(t, err)
	assert.Len(t, keys, 5)

	keys, err = store.ScanPattern(ctx, "session:?")
	require.NoError(t, err)
	assert.Equal(t, []string{"session:1"}, keys)

	_, err = store.ScanPattern(ctx, "")
	assert.Error(t, err)
}

func TestScanPatternEscapesLikeSpecials(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, testEntry("rate_limit:a", "x", time.Minute)))
	require.NoError(t, store.Set(ctx, testEntry("rateXlimit:a", "y", time.Minute)))

	// '_' in the pattern is literal, not a LIKE wildcard
	keys, err := store.ScanPattern(ctx, "rate_limit:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"rate_limit:a"}, keys)
}

func TestRemoveExpiredBatched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := testEntry(fmt.Sprintf("dead:%d", i), "x", time.Minute)
		entry.ExpiresAt = time.Now().UTC().Add(-time.Second)
		require.NoError(t, store.Set(ctx, entry))
	}
	require.NoError(t, store.Set(ctx, testEntry("live", "y", time.Minute)))

	removed, err := store.RemoveExpired(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	removed, err = store.RemoveExpired(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries)
}

func TestStatsExcludesExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, testEntry("live", "12345", time.Minute)))

	dead := testEntry("dead", "x", time.Minute)
	dead.ExpiresAt = time.Now().UTC().Add(-time.Second)
	require.NoError(t, store.Set(ctx, dead))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries)
	assert.Equal(t, int64(5), stats.SizeBytes)
}

func TestHealth(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Health(context.Background()))
}
