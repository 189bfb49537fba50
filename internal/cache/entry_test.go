package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntryExpired(t *testing.T) {
	now := time.Now()

	entry := &Entry{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, entry.Expired(now))
	assert.True(t, entry.Expired(now.Add(2*time.Minute)))

	// A zero ExpiresAt never expires
	entry = &Entry{}
	assert.False(t, entry.Expired(now.Add(100*time.Hour)))
}

func TestEntryRemainingTTL(t *testing.T) {
	now := time.Now()

	entry := &Entry{ExpiresAt: now.Add(time.Minute)}
	remaining := entry.RemainingTTL(now)
	assert.Equal(t, time.Minute, remaining)

	assert.Equal(t, time.Duration(0), entry.RemainingTTL(now.Add(2*time.Minute)))

	entry = &Entry{TTL: time.Hour}
	assert.Equal(t, time.Hour, entry.RemainingTTL(now))
}

func TestEntryTouch(t *testing.T) {
	now := time.Now()
	entry := &Entry{}

	entry.Touch(now)
	entry.Touch(now.Add(time.Second))

	assert.Equal(t, int64(2), entry.AccessCount)
	assert.Equal(t, now.Add(time.Second), entry.LastAccessedAt)
}

func TestEntryClone(t *testing.T) {
	entry := &Entry{
		Key:   "user:1",
		Value: []byte("alice"),
		Tags:  []string{"users"},
	}

	clone := entry.Clone()
	clone.Value[0] = 'X'
	clone.Tags[0] = "changed"

	assert.Equal(t, []byte("alice"), entry.Value)
	assert.Equal(t, []string{"users"}, entry.Tags)
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"L1_MEMORY", "L2_REDIS", "L3_PERSISTENT"} {
		level, ok := ParseLevel(name)
		assert.True(t, ok)
		assert.Equal(t, Level(name), level)
	}

	_, ok := ParseLevel("L4_TAPE")
	assert.False(t, ok)
}
