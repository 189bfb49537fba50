package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var testEnvVars = []string{
	"PORT", "LOG_LEVEL", "AUTH_JWT_SECRET",
	"L1_ENABLED", "L1_MAX_CAPACITY", "L1_MAX_SIZE_MB", "L1_DEFAULT_TTL", "L1_SHARDS",
	"L2_ENABLED", "REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE", "REDIS_KEY_PREFIX", "L2_DEFAULT_TTL",
	"L3_ENABLED", "DATABASE_TYPE", "DATABASE_PATH", "L3_DEFAULT_TTL",
	"COMPRESSION_ALGORITHM", "COMPRESSION_MIN_BYTES", "SERIALIZATION_FORMAT",
	"MAX_ENTRY_SIZE_MB", "TIER_OP_TIMEOUT", "SWEEP_INTERVAL", "L3_CLEANUP_INTERVAL", "L3_CLEANUP_BATCH", "PROMOTE_FROM_L3",
}

func clearTestEnvVars() {
	for _, key := range testEnvVars {
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	// Clear environment variables to test defaults
	clearTestEnvVars()

	config := Load()

	if config.Port != "8080" {
		t.Errorf("Load() Port = %v, want %v", config.Port, "8080")
	}

	if config.LogLevel != "info" {
		t.Errorf("Load() LogLevel = %v, want %v", config.LogLevel, "info")
	}

	if !config.L1Enabled {
		t.Errorf("Load() L1Enabled = false, want true")
	}

	if config.L1MaxCapacity != 10000 {
		t.Errorf("Load() L1MaxCapacity = %v, want %v", config.L1MaxCapacity, 10000)
	}

	if config.L1DefaultTTL != 5*time.Minute {
		t.Errorf("Load() L1DefaultTTL = %v, want %v", config.L1DefaultTTL, 5*time.Minute)
	}

	if config.RedisAddress != "localhost:6379" {
		t.Errorf("Load() RedisAddress = %v, want %v", config.RedisAddress, "localhost:6379")
	}

	if config.RedisKeyPrefix != "cache:" {
		t.Errorf("Load() RedisKeyPrefix = %v, want %v", config.RedisKeyPrefix, "cache:")
	}

	if config.DatabaseType != "sqlite" {
		t.Errorf("Load() DatabaseType = %v, want %v", config.DatabaseType, "sqlite")
	}

	if config.CompressionAlgorithm != "balanced" {
		t.Errorf("Load() CompressionAlgorithm = %v, want %v", config.CompressionAlgorithm, "balanced")
	}

	if config.SerializationFormat != "json" {
		t.Errorf("Load() SerializationFormat = %v, want %v", config.SerializationFormat, "json")
	}

	if config.MaxEntrySizeMB != 16 {
		t.Errorf("Load() MaxEntrySizeMB = %v, want %v", config.MaxEntrySizeMB, 16)
	}

	if config.TierOpTimeout != 2*time.Second {
		t.Errorf("Load() TierOpTimeout = %v, want %v", config.TierOpTimeout, 2*time.Second)
	}

	if !config.PromoteFromL3 {
		t.Errorf("Load() PromoteFromL3 = false, want true")
	}
}

func TestLoadWithEnvironmentOverrides(t *testing.T) {
	clearTestEnvVars()
	defer clearTestEnvVars()

	os.Setenv("PORT", "9090")
	os.Setenv("L1_MAX_CAPACITY", "500")
	os.Setenv("L2_ENABLED", "false")
	os.Setenv("L2_DEFAULT_TTL", "10m")
	os.Setenv("COMPRESSION_ALGORITHM", "max")
	os.Setenv("SERIALIZATION_FORMAT", "gob")

	config := Load()

	if config.Port != "9090" {
		t.Errorf("Load() Port = %v, want %v", config.Port, "9090")
	}
	if config.L1MaxCapacity != 500 {
		t.Errorf("Load() L1MaxCapacity = %v, want %v", config.L1MaxCapacity, 500)
	}
	if config.L2Enabled {
		t.Errorf("Load() L2Enabled = true, want false")
	}
	if config.L2DefaultTTL != 10*time.Minute {
		t.Errorf("Load() L2DefaultTTL = %v, want %v", config.L2DefaultTTL, 10*time.Minute)
	}
	if config.CompressionAlgorithm != "max" {
		t.Errorf("Load() CompressionAlgorithm = %v, want %v", config.CompressionAlgorithm, "max")
	}
	if config.SerializationFormat != "gob" {
		t.Errorf("Load() SerializationFormat = %v, want %v", config.SerializationFormat, "gob")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	clearTestEnvVars()
	defer clearTestEnvVars()

	os.Setenv("L1_MAX_CAPACITY", "not-a-number")
	os.Setenv("L1_ENABLED", "maybe")
	os.Setenv("SWEEP_INTERVAL", "soon")

	config := Load()

	if config.L1MaxCapacity != 10000 {
		t.Errorf("Load() L1MaxCapacity = %v, want default %v", config.L1MaxCapacity, 10000)
	}
	if !config.L1Enabled {
		t.Errorf("Load() L1Enabled = false, want default true")
	}
	if config.SweepInterval != 30*time.Second {
		t.Errorf("Load() SweepInterval = %v, want default %v", config.SweepInterval, 30*time.Second)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		clearTestEnvVars()
		cfg := Load()
		cfg.AuthJWTSecret = strings.Repeat("s", 32)
		return cfg
	}

	t.Run("valid config", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		cfg := valid()
		cfg.AuthJWTSecret = ""
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate() = nil, want error")
		}
	})

	t.Run("short jwt secret", func(t *testing.T) {
		cfg := valid()
		cfg.AuthJWTSecret = "short"
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate() = nil, want error")
		}
	})

	t.Run("no tier enabled", func(t *testing.T) {
		cfg := valid()
		cfg.L1Enabled = false
		cfg.L2Enabled = false
		cfg.L3Enabled = false
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate() = nil, want error")
		}
	})

	t.Run("unknown database type", func(t *testing.T) {
		cfg := valid()
		cfg.DatabaseType = "oracle"
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate() = nil, want error")
		}
	})

	t.Run("unknown compression algorithm", func(t *testing.T) {
		cfg := valid()
		cfg.CompressionAlgorithm = "brotli"
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate() = nil, want error")
		}
	})
}
