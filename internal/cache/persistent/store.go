// Package persistent implements the L3 durable tier on SQLite or PostgreSQL.
// It holds entries too large or too long-lived for the faster tiers and
// purges expired rows in bounded batches so a cleanup pass never holds locks
// for a whole table scan.
package persistent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"cache-engine/internal/cache"
	"cache-engine/internal/cache/codec"
	"cache-engine/internal/cache/invalidation"
	"cache-engine/internal/common/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	type_tag TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	last_accessed_at TIMESTAMP NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	ttl_ns INTEGER NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	size_bytes INTEGER NOT NULL,
	compressed BOOLEAN NOT NULL,
	compression_algorithm TEXT NOT NULL DEFAULT '',
	compression_ratio REAL NOT NULL DEFAULT 1.0,
	serialization_format TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL,
	type_tag TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	last_accessed_at TIMESTAMPTZ NOT NULL,
	access_count BIGINT NOT NULL DEFAULT 0,
	ttl_ns BIGINT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	size_bytes BIGINT NOT NULL,
	compressed BOOLEAN NOT NULL,
	compression_algorithm TEXT NOT NULL DEFAULT '',
	compression_ratio DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	serialization_format TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`

// Store is the L3 persistent tier.
type Store struct {
	db     *sql.DB
	config *Config
}

// New opens the database, verifies connectivity and runs the migration.
func New(config *Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(config.driverName(), config.dsn())
	if err != nil {
		return nil, errors.BackendUnavailable(string(cache.LevelL3), err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.BackendUnavailable(string(cache.LevelL3), err)
	}

	s := &Store{db: db, config: config}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := sqliteSchema
	if s.config.Driver == DriverPostgres {
		schema = postgresSchema
	}
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Internal("failed to migrate cache_entries table", err)
	}
	if s.config.Driver == DriverSQLite {
		// Glob patterns are case sensitive; SQLite's LIKE is not by default.
		if _, err := s.db.Exec(`PRAGMA case_sensitive_like = ON`); err != nil {
			return errors.Internal("failed to enable case sensitive LIKE", err)
		}
	}
	return nil
}

// rebind converts '?' placeholders to the postgres '$n' form when needed.
func (s *Store) rebind(query string) string {
	if s.config.Driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Level identifies the tier.
func (s *Store) Level() cache.Level {
	return cache.LevelL3
}

// Get returns the entry for key and bumps its access metadata. Expired rows
// are treated as absent and deleted opportunistically.
func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT key, value, type_tag, created_at, last_accessed_at, access_count,
		       ttl_ns, expires_at, size_bytes, compressed, compression_algorithm,
		       compression_ratio, serialization_format, tags
		FROM cache_entries WHERE key = ?`), key)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.BackendUnavailable(string(cache.LevelL3), err)
	}

	now := time.Now().UTC()
	if entry.Expired(now) {
		s.db.ExecContext(ctx, s.rebind(`DELETE FROM cache_entries WHERE key = ?`), key)
		return nil, nil
	}

	entry.Touch(now)
	if _, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE cache_entries SET last_accessed_at = ?, access_count = access_count + 1
		WHERE key = ?`), now, key); err != nil {
		return nil, errors.BackendUnavailable(string(cache.LevelL3), err)
	}

	entry.Level = cache.LevelL3
	return entry, nil
}

// Set upserts the entry row.
func (s *Store) Set(ctx context.Context, entry *cache.Entry) error {
	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return errors.Serialization("failed to encode entry tags", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO cache_entries (
			key, value, type_tag, created_at, last_accessed_at, access_count,
			ttl_ns, expires_at, size_bytes, compressed, compression_algorithm,
			compression_ratio, serialization_format, tags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			type_tag = excluded.type_tag,
			created_at = excluded.created_at,
			last_accessed_at = excluded.last_accessed_at,
			access_count = excluded.access_count,
			ttl_ns = excluded.ttl_ns,
			expires_at = excluded.expires_at,
			size_bytes = excluded.size_bytes,
			compressed = excluded.compressed,
			compression_algorithm = excluded.compression_algorithm,
			compression_ratio = excluded.compression_ratio,
			serialization_format = excluded.serialization_format,
			tags = excluded.tags`),
		entry.Key, entry.Value, entry.TypeTag,
		entry.CreatedAt.UTC(), entry.LastAccessedAt.UTC(), entry.AccessCount,
		int64(entry.TTL), entry.ExpiresAt.UTC(), entry.SizeBytes,
		entry.Compressed, string(entry.CompressionAlgorithm), entry.CompressionRatio,
		string(entry.SerializationFormat), string(tags))
	if err != nil {
		return errors.BackendUnavailable(string(cache.LevelL3), err)
	}
	return nil
}

// Delete removes an entry row and reports whether one existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM cache_entries WHERE key = ?`), key)
	if err != nil {
		return false, errors.BackendUnavailable(string(cache.LevelL3), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.BackendUnavailable(string(cache.LevelL3), err)
	}
	return n > 0, nil
}

// Contains reports whether a live row exists without touching it.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT 1 FROM cache_entries WHERE key = ? AND expires_at > ?`),
		key, time.Now().UTC()).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.BackendUnavailable(string(cache.LevelL3), err)
	}
	return true, nil
}

// ScanPattern enumerates live keys matching a glob pattern via a LIKE scan.
func (s *Store) ScanPattern(ctx context.Context, pattern string) ([]string, error) {
	if _, err := invalidation.Compile(pattern); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT key FROM cache_entries WHERE key LIKE ? ESCAPE '\' AND expires_at > ?`),
		invalidation.SQLLike(pattern), time.Now().UTC())
	if err != nil {
		return nil, errors.BackendUnavailable(string(cache.LevelL3), err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.BackendUnavailable(string(cache.LevelL3), err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.BackendUnavailable(string(cache.LevelL3), err)
	}
	return keys, nil
}

// RemoveExpired purges up to limit expired rows. The bounded subquery keeps
// lock hold times short under large backlogs.
func (s *Store) RemoveExpired(ctx context.Context, limit int) (int, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM cache_entries WHERE key IN (
			SELECT key FROM cache_entries WHERE expires_at <= ? LIMIT ?
		)`), time.Now().UTC(), limit)
	if err != nil {
		return 0, errors.BackendUnavailable(string(cache.LevelL3), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.BackendUnavailable(string(cache.LevelL3), err)
	}
	return int(n), nil
}

// Stats returns the live row count and payload volume.
func (s *Store) Stats(ctx context.Context) (cache.TierStats, error) {
	var stats cache.TierStats
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM cache_entries WHERE expires_at > ?`), time.Now().UTC()).
		Scan(&stats.Entries, &stats.SizeBytes)
	if err != nil {
		return cache.TierStats{}, errors.BackendUnavailable(string(cache.LevelL3), err)
	}
	return stats, nil
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.BackendUnavailable(string(cache.LevelL3), err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*cache.Entry, error) {
	var entry cache.Entry
	var ttlNS int64
	var algorithm, format, tags string

	err := row.Scan(&entry.Key, &entry.Value, &entry.TypeTag,
		&entry.CreatedAt, &entry.LastAccessedAt, &entry.AccessCount,
		&ttlNS, &entry.ExpiresAt, &entry.SizeBytes, &entry.Compressed,
		&algorithm, &entry.CompressionRatio, &format, &tags)
	if err != nil {
		return nil, err
	}

	entry.TTL = time.Duration(ttlNS)
	entry.CompressionAlgorithm = codec.Algorithm(algorithm)
	entry.SerializationFormat = codec.Format(format)
	if err := json.Unmarshal([]byte(tags), &entry.Tags); err != nil {
		return nil, err
	}
	return &entry, nil
}
