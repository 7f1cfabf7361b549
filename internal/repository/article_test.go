//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riviantrackr/aisearch/internal/domain"
	"github.com/riviantrackr/aisearch/internal/testutil"
)

func TestArticleRepository_Search(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	repo := NewArticleRepository(pool)

	n, err := repo.Import(ctx, []domain.SearchDocument{
		{ID: "1", Title: "Battery degradation after 50,000 miles", URL: "https://example.com/1", Excerpt: "Pack health data.", PublishedDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "2", Title: "Charging guide", URL: "https://example.com/2", Body: "Battery degradation is slowed by moderate charging.", PublishedDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "3", Title: "Towing review", URL: "https://example.com/3", Body: "Trailer range."},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	docs, err := repo.Search(ctx, "battery degradation", 6, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].ID, "title match ranks first")

	docs, err = repo.Search(ctx, "battery degradation", 6, []string{"1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "2", docs[0].ID)

	docs, err = repo.Search(ctx, "battery", 1, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestArticleRepository_ImportRejectsIncomplete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	repo := NewArticleRepository(pool)

	_, err := repo.Import(ctx, []domain.SearchDocument{
		{ID: "1", Title: "Complete", URL: "https://example.com/1"},
		{ID: "2", Title: "No URL"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)

	docs, err := repo.Search(ctx, "complete", 6, nil)
	require.NoError(t, err)
	assert.Empty(t, docs, "transaction rolled back")
}
