package configstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cache-engine/internal/common/errors"
)

func validSettings() Settings {
	return Settings{
		L1: TierConfig{
			Enabled:     true,
			MaxCapacity: 1000,
			MaxSizeMB:   64,
			DefaultTTL:  5 * time.Minute,
		},
		L2: TierConfig{Enabled: true, DefaultTTL: 30 * time.Minute},
		L3: TierConfig{Enabled: true, DefaultTTL: 24 * time.Hour},

		CompressionAlgorithm: "balanced",
		CompressionMinBytes:  1024,
		SerializationFormat:  "json",
		MaxEntrySizeMB:       16,

		SweepInterval:     30 * time.Second,
		L3CleanupInterval: 5 * time.Minute,
		L3CleanupBatch:    500,
		PromoteFromL3:     true,
	}
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	settings := validSettings()
	settings.CompressionAlgorithm = "brotli"

	_, err := New(settings)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestSnapshot(t *testing.T) {
	store, err := New(validSettings())
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.True(t, snap.L1.Enabled)
	assert.Equal(t, 16, snap.MaxEntrySizeMB)
	assert.Equal(t, int64(16*1024*1024), snap.MaxEntrySizeBytes())
}

func TestUpdateSwapsSnapshot(t *testing.T) {
	store, err := New(validSettings())
	require.NoError(t, err)

	next := validSettings()
	next.CompressionMinBytes = 4096

	restartRequired, err := store.Update(next)
	require.NoError(t, err)
	assert.False(t, restartRequired)
	assert.Equal(t, 4096, store.Snapshot().CompressionMinBytes)
}

func TestUpdateInvalidLeavesCurrentUntouched(t *testing.T) {
	store, err := New(validSettings())
	require.NoError(t, err)

	next := validSettings()
	next.MaxEntrySizeMB = 0
	next.CompressionMinBytes = 9999

	_, err = store.Update(next)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	snap := store.Snapshot()
	assert.Equal(t, 16, snap.MaxEntrySizeMB)
	assert.Equal(t, 1024, snap.CompressionMinBytes)
}

func TestUpdateReportsRestartRequired(t *testing.T) {
	store, err := New(validSettings())
	require.NoError(t, err)

	next := validSettings()
	next.L2.Enabled = false

	restartRequired, err := store.Update(next)
	require.NoError(t, err)
	assert.True(t, restartRequired)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"no tier enabled", func(s *Settings) {
			s.L1.Enabled = false
			s.L2.Enabled = false
			s.L3.Enabled = false
		}},
		{"l1 zero capacity", func(s *Settings) { s.L1.MaxCapacity = 0 }},
		{"l1 zero size", func(s *Settings) { s.L1.MaxSizeMB = 0 }},
		{"zero max entry size", func(s *Settings) { s.MaxEntrySizeMB = 0 }},
		{"negative compression threshold", func(s *Settings) { s.CompressionMinBytes = -1 }},
		{"unknown compression algorithm", func(s *Settings) { s.CompressionAlgorithm = "lz4" }},
		{"unknown serialization format", func(s *Settings) { s.SerializationFormat = "xml" }},
		{"zero cleanup batch", func(s *Settings) { s.L3CleanupBatch = 0 }},
		{"zero sweep interval", func(s *Settings) { s.SweepInterval = 0 }},
		{"zero cleanup interval", func(s *Settings) { s.L3CleanupInterval = 0 }},
		{"unsupported eviction policy", func(s *Settings) { s.L1.EvictionPolicy = "lfu" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := validSettings()
			tt.mutate(&settings)
			assert.Error(t, settings.Validate())
		})
	}
}

func TestWatchSignalsOnUpdate(t *testing.T) {
	store, err := New(validSettings())
	require.NoError(t, err)

	changes := store.Watch()
	select {
	case <-changes:
		t.Fatal("signal before any update")
	default:
	}

	next := validSettings()
	next.CompressionMinBytes = 2048
	_, err = store.Update(next)
	require.NoError(t, err)

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("no signal after update")
	}

	// A rejected update never signals
	next.MaxEntrySizeMB = 0
	_, err = store.Update(next)
	require.Error(t, err)
	select {
	case <-changes:
		t.Fatal("signal after rejected update")
	default:
	}
}

func TestTierFor(t *testing.T) {
	settings := validSettings()

	assert.Equal(t, &settings.L1, settings.TierFor("L1_MEMORY"))
	assert.Equal(t, &settings.L2, settings.TierFor("L2_REDIS"))
	assert.Equal(t, &settings.L3, settings.TierFor("L3_PERSISTENT"))
	assert.Nil(t, settings.TierFor("L4_TAPE"))
}

func TestConcurrentReadersDuringUpdate(t *testing.T) {
	store, err := New(validSettings())
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := store.Snapshot()
				// A snapshot is never torn: both values change together
				if snap.CompressionMinBytes == 1024 {
					assert.Equal(t, "balanced", snap.CompressionAlgorithm)
				} else {
					assert.Equal(t, "fast", snap.CompressionAlgorithm)
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		next := validSettings()
		if i%2 == 1 {
			next.CompressionMinBytes = 2048
			next.CompressionAlgorithm = "fast"
		}
		_, err := store.Update(next)
		require.NoError(t, err)
	}

	close(stop)
	wg.Wait()
}
