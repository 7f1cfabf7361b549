package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/riviantrackr/aisearch/internal/domain"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS kv_counters (
	key        TEXT PRIMARY KEY,
	value      INTEGER NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS search_events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	query         TEXT NOT NULL,
	results_count INTEGER NOT NULL,
	ai_success    INTEGER NOT NULL,
	ai_error      TEXT NOT NULL DEFAULT '',
	error_code    TEXT NOT NULL DEFAULT '',
	cache_hit     INTEGER,
	source        TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kv_entries_expires_at ON kv_entries (expires_at) WHERE expires_at > 0;
CREATE INDEX IF NOT EXISTS idx_kv_counters_expires_at ON kv_counters (expires_at) WHERE expires_at > 0;
`

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// SQLiteStore is a Store and search event sink backed by a single SQLite
// file. Expiry times are stored as unix milliseconds, 0 meaning none.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection: SQLite allows a single writer, and every connection to
	// ":memory:" would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	for _, p := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) nowMillis() int64 {
	return s.now().UnixMilli()
}

func (s *SQLiteStore) deadline(ttl time.Duration) int64 {
	d := expiresAt(s.now(), ttl)
	if d.IsZero() {
		return 0
	}
	return d.UnixMilli()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, s.nowMillis(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, s.deadline(ttl),
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_counters WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete counter %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.nowMillis()
	var value int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO kv_counters (key, value, expires_at) VALUES (?1, 1, ?2)
		 ON CONFLICT(key) DO UPDATE SET
		   value = CASE WHEN kv_counters.expires_at != 0 AND kv_counters.expires_at <= ?3
		                THEN 1 ELSE kv_counters.value + 1 END,
		   expires_at = CASE WHEN kv_counters.expires_at != 0 AND kv_counters.expires_at <= ?3
		                THEN excluded.expires_at ELSE kv_counters.expires_at END
		 RETURNING value`,
		key, s.deadline(ttl), now,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Counter(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_counters WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, s.nowMillis(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}
	return value, nil
}

// SweepExpired deletes expired entries and counters.
func (s *SQLiteStore) SweepExpired(ctx context.Context) (int64, error) {
	now := s.nowMillis()
	var total int64
	for _, table := range []string{"kv_entries", "kv_counters"} {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE expires_at != 0 AND expires_at <= ?`, now)
		if err != nil {
			return total, fmt.Errorf("failed to sweep %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// RecordSearchEvent appends a search event.
func (s *SQLiteStore) RecordSearchEvent(ctx context.Context, event domain.SearchEvent) error {
	var cacheHit sql.NullBool
	if event.CacheHit != nil {
		cacheHit = sql.NullBool{Bool: *event.CacheHit, Valid: true}
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_events (query, results_count, ai_success, ai_error, error_code, cache_hit, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Query,
		event.ResultsCount,
		event.AISuccess,
		event.AIError,
		event.ErrorCode,
		cacheHit,
		string(event.Source),
		ts.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record search event: %w", err)
	}
	return nil
}
