package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// KVRepository implements store.Store over the kv_entries and kv_counters
// tables. A NULL expires_at means the row never expires.
type KVRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewKVRepository(pool *pgxpool.Pool) *KVRepository {
	return &KVRepository{pool: pool, now: time.Now}
}

func (r *KVRepository) deadline(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := r.now().Add(ttl).UTC()
	return &t
}

func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		key, r.now().UTC(),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (r *KVRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, r.deadline(ttl),
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (r *KVRepository) Delete(ctx context.Context, key string) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM kv_entries WHERE key = $1`, key)
	batch.Queue(`DELETE FROM kv_counters WHERE key = $1`, key)
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (r *KVRepository) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var value int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO kv_counters (key, value, expires_at) VALUES ($1, 1, $2)
		 ON CONFLICT (key) DO UPDATE SET
		   value = CASE WHEN kv_counters.expires_at IS NOT NULL AND kv_counters.expires_at <= $3
		                THEN 1 ELSE kv_counters.value + 1 END,
		   expires_at = CASE WHEN kv_counters.expires_at IS NOT NULL AND kv_counters.expires_at <= $3
		                THEN EXCLUDED.expires_at ELSE kv_counters.expires_at END
		 RETURNING value`,
		key, r.deadline(ttl), r.now().UTC(),
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	return value, nil
}

func (r *KVRepository) Counter(ctx context.Context, key string) (int64, error) {
	var value int64
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM kv_counters WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		key, r.now().UTC(),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}
	return value, nil
}

// SweepExpired deletes expired entries and counters.
func (r *KVRepository) SweepExpired(ctx context.Context) (int64, error) {
	now := r.now().UTC()
	var total int64
	for _, table := range []string{"kv_entries", "kv_counters"} {
		tag, err := r.pool.Exec(ctx,
			`DELETE FROM `+table+` WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
		if err != nil {
			return total, fmt.Errorf("failed to sweep %s: %w", table, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
