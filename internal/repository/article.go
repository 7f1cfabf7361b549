package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riviantrackr/aisearch/internal/domain"
)

// ArticleRepository is the Postgres full-text content source.
type ArticleRepository struct {
	pool *pgxpool.Pool
}

func NewArticleRepository(pool *pgxpool.Pool) *ArticleRepository {
	return &ArticleRepository{pool: pool}
}

// Search ranks articles matching query with ts_rank_cd, newest first on ties.
func (r *ArticleRepository) Search(ctx context.Context, query string, limit int, exclude []string) ([]domain.SearchDocument, error) {
	if exclude == nil {
		exclude = []string{}
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, url, excerpt, body, source_type, published_at
		 FROM articles, websearch_to_tsquery('english', $1) AS q
		 WHERE search_vector @@ q AND id <> ALL($3)
		 ORDER BY ts_rank_cd(search_vector, q) DESC, published_at DESC
		 LIMIT $2`,
		query, limit, exclude,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search articles: %w", err)
	}
	defer rows.Close()

	docs := []domain.SearchDocument{}
	for rows.Next() {
		var d domain.SearchDocument
		if err := rows.Scan(&d.ID, &d.Title, &d.URL, &d.Excerpt, &d.Body, &d.SourceType, &d.PublishedDate); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Import upserts docs in one transaction.
func (r *ArticleRepository) Import(ctx context.Context, docs []domain.SearchDocument) (int, error) {
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, d := range docs {
			if d.ID == "" || d.Title == "" || d.URL == "" {
				return fmt.Errorf("article %q: %w", d.ID, domain.ErrMissingRequiredField)
			}
			sourceType := d.SourceType
			if sourceType == "" {
				sourceType = "post"
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO articles (id, title, url, excerpt, body, source_type, published_at)
				 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
				 ON CONFLICT (id) DO UPDATE SET
				   title = EXCLUDED.title, url = EXCLUDED.url, excerpt = EXCLUDED.excerpt,
				   body = EXCLUDED.body, source_type = EXCLUDED.source_type, published_at = EXCLUDED.published_at`,
				d.ID, d.Title, d.URL, d.Excerpt, d.Body, sourceType, nullableTime(d.PublishedDate),
			)
			if err != nil {
				return fmt.Errorf("failed to upsert article %s: %w", d.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
