package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riviantrackr/aisearch/internal/domain"
)

// SearchEventRepository appends search events.
type SearchEventRepository struct {
	pool *pgxpool.Pool
}

func NewSearchEventRepository(pool *pgxpool.Pool) *SearchEventRepository {
	return &SearchEventRepository{pool: pool}
}

func (r *SearchEventRepository) RecordSearchEvent(ctx context.Context, event domain.SearchEvent) error {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	source := event.Source
	if source == "" {
		source = domain.EventSourceServer
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO search_events (query, results_count, ai_success, ai_error, error_code, cache_hit, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.Query,
		event.ResultsCount,
		event.AISuccess,
		event.AIError,
		event.ErrorCode,
		event.CacheHit,
		string(source),
		ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record search event: %w", err)
	}
	return nil
}

// Recent returns the newest events first.
func (r *SearchEventRepository) Recent(ctx context.Context, limit int) ([]domain.SearchEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT query, results_count, ai_success, ai_error, error_code, cache_hit, source, created_at
		 FROM search_events ORDER BY created_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.SearchEvent
	for rows.Next() {
		var e domain.SearchEvent
		var source string
		if err := rows.Scan(&e.Query, &e.ResultsCount, &e.AISuccess, &e.AIError, &e.ErrorCode, &e.CacheHit, &source, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Source = domain.EventSource(source)
		events = append(events, e)
	}
	return events, rows.Err()
}
