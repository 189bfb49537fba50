// Package config provides configuration management for the cache engine.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration to ensure the service starts safely.
//
// The engine coordinates three storage tiers: an in-process memory tier (L1),
// a Redis tier (L2) and a durable SQL tier (L3, SQLite or PostgreSQL).
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - AUTH_JWT_SECRET: Bearer token signing secret (required, minimum 32 characters)
//
// L1 Memory Tier:
//   - L1_ENABLED: Enable the in-process tier (default: true)
//   - L1_MAX_CAPACITY: Maximum entry count (default: 10000)
//   - L1_MAX_SIZE_MB: Maximum total payload size in MB (default: 256)
//   - L1_DEFAULT_TTL: Default TTL for entries without one (default: 5m)
//   - L1_SHARDS: Number of locked partitions (default: 16)
//
// L2 Redis Tier:
//   - L2_ENABLED: Enable the Redis tier (default: true)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - REDIS_KEY_PREFIX: Namespace prefix for cache keys (default: cache:)
//   - L2_DEFAULT_TTL: Default TTL in the Redis tier (default: 30m)
//
// L3 Persistent Tier:
//   - L3_ENABLED: Enable the persistent tier (default: true)
//   - DATABASE_TYPE: Database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./cache_engine.db)
//   - POSTGRES_HOST: PostgreSQL host (required if using PostgreSQL)
//   - POSTGRES_PORT: PostgreSQL port (default: 5432)
//   - POSTGRES_DB: PostgreSQL database name (required if using PostgreSQL)
//   - POSTGRES_USER: PostgreSQL username (required if using PostgreSQL)
//   - POSTGRES_PASSWORD: PostgreSQL password
//   - POSTGRES_SSL_MODE: PostgreSQL SSL mode (default: disable)
//   - L3_DEFAULT_TTL: Default TTL in the persistent tier (default: 24h)
//
// Codec and Engine Settings:
//   - COMPRESSION_ALGORITHM: none, fast, balanced or max (default: balanced)
//   - COMPRESSION_MIN_BYTES: Payloads below this skip compression (default: 1024)
//   - SERIALIZATION_FORMAT: json or gob (default: json)
//   - MAX_ENTRY_SIZE_MB: Global per-entry size limit (default: 16)
//   - TIER_OP_TIMEOUT: Per-tier operation timeout (default: 2s)
//   - SWEEP_INTERVAL: Expired entry sweep interval (default: 30s)
//   - L3_CLEANUP_INTERVAL: Persistent tier cleanup interval (default: 5m)
//   - L3_CLEANUP_BATCH: Rows purged per cleanup pass (default: 500)
//   - PROMOTE_FROM_L3: Promote entries on an L3 hit (default: true)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the cache engine. All fields
// correspond to environment variables that can be set to override the
// default values.
//
// The configuration is loaded using the Load() function and should be
// validated using the Validate() method before use.
type Config struct {
	// Application settings
	Port          string // Server port number
	LogLevel      string // Logging level (debug, info, warn, error)
	AuthJWTSecret string // Secret for validating bearer tokens (required)

	// L1 memory tier
	L1Enabled     bool
	L1MaxCapacity int
	L1MaxSizeMB   int
	L1DefaultTTL  time.Duration
	L1Shards      int

	// L2 Redis tier
	L2Enabled      bool
	RedisAddress   string
	RedisPassword  string
	RedisDB        int
	RedisPoolSize  int
	RedisKeyPrefix string
	L2DefaultTTL   time.Duration

	// L3 persistent tier
	L3Enabled        bool
	DatabaseType     string // "sqlite" or "postgres"
	DatabasePath     string // SQLite database file path
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string
	L3DefaultTTL     time.Duration

	// Codec settings
	CompressionAlgorithm string
	CompressionMinBytes  int
	SerializationFormat  string

	// Engine settings
	MaxEntrySizeMB    int
	TierOpTimeout     time.Duration
	SweepInterval     time.Duration
	L3CleanupInterval time.Duration
	L3CleanupBatch    int
	PromoteFromL3     bool
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding
// default value is used.
//
// This function does not validate the configuration - call Validate() on the
// returned Config to ensure all required values are properly set and valid.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),

		L1Enabled:     getBoolEnv("L1_ENABLED", true),
		L1MaxCapacity: getIntEnv("L1_MAX_CAPACITY", 10000),
		L1MaxSizeMB:   getIntEnv("L1_MAX_SIZE_MB", 256),
		L1DefaultTTL:  getDurationEnv("L1_DEFAULT_TTL", 5*time.Minute),
		L1Shards:      getIntEnv("L1_SHARDS", 16),

		L2Enabled:      getBoolEnv("L2_ENABLED", true),
		RedisAddress:   getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getIntEnv("REDIS_DB", 0),
		RedisPoolSize:  getIntEnv("REDIS_POOL_SIZE", 10),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "cache:"),
		L2DefaultTTL:   getDurationEnv("L2_DEFAULT_TTL", 30*time.Minute),

		L3Enabled:        getBoolEnv("L3_ENABLED", true),
		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./cache_engine.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "cache_engine"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
		L3DefaultTTL:     getDurationEnv("L3_DEFAULT_TTL", 24*time.Hour),

		CompressionAlgorithm: getEnv("COMPRESSION_ALGORITHM", "balanced"),
		CompressionMinBytes:  getIntEnv("COMPRESSION_MIN_BYTES", 1024),
		SerializationFormat:  getEnv("SERIALIZATION_FORMAT", "json"),

		MaxEntrySizeMB:    getIntEnv("MAX_ENTRY_SIZE_MB", 16),
		TierOpTimeout:     getDurationEnv("TIER_OP_TIMEOUT", 2*time.Second),
		SweepInterval:     getDurationEnv("SWEEP_INTERVAL", 30*time.Second),
		L3CleanupInterval: getDurationEnv("L3_CLEANUP_INTERVAL", 5*time.Minute),
		L3CleanupBatch:    getIntEnv("L3_CLEANUP_BATCH", 500),
		PromoteFromL3:     getBoolEnv("PROMOTE_FROM_L3", true),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable value or returns a default value.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable value or returns a default value.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs comprehensive validation on the configuration to ensure
// all required fields are present and all values are valid.
//
// The application should call this method after loading configuration and
// before starting to ensure safe operation.
func (c *Config) Validate() error {
	if c.AuthJWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET environment variable is required")
	}

	if len(c.AuthJWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters long for security")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if !c.L1Enabled && !c.L2Enabled && !c.L3Enabled {
		return fmt.Errorf("at least one cache tier must be enabled")
	}

	if c.L1Enabled {
		if c.L1MaxCapacity < 1 {
			return fmt.Errorf("L1_MAX_CAPACITY must be a positive number")
		}
		if c.L1MaxSizeMB < 1 {
			return fmt.Errorf("L1_MAX_SIZE_MB must be a positive number")
		}
		if c.L1Shards < 1 {
			return fmt.Errorf("L1_SHARDS must be a positive number")
		}
	}

	if c.L2Enabled {
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if c.RedisPoolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
		// Valid database types
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.L3Enabled && (c.DatabaseType == "postgres" || c.DatabaseType == "postgresql") {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	switch c.CompressionAlgorithm {
	case "none", "fast", "balanced", "max":
		// Valid algorithms
	default:
		return fmt.Errorf("COMPRESSION_ALGORITHM must be 'none', 'fast', 'balanced' or 'max'")
	}

	if c.CompressionMinBytes < 0 {
		return fmt.Errorf("COMPRESSION_MIN_BYTES must not be negative")
	}

	switch c.SerializationFormat {
	case "json", "gob":
		// Valid formats
	default:
		return fmt.Errorf("SERIALIZATION_FORMAT must be 'json' or 'gob'")
	}

	if c.MaxEntrySizeMB < 1 {
		return fmt.Errorf("MAX_ENTRY_SIZE_MB must be a positive number")
	}

	if c.TierOpTimeout <= 0 {
		return fmt.Errorf("TIER_OP_TIMEOUT must be a positive duration")
	}

	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be a positive duration")
	}

	if c.L3CleanupBatch < 1 {
		return fmt.Errorf("L3_CLEANUP_BATCH must be a positive number")
	}

	return nil
}
