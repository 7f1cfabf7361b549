package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/riviantrackr/aisearch/internal/domain"
	"github.com/riviantrackr/aisearch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, s store.Store) *SummaryCache {
	t.Helper()
	return New(s, Options{
		Model:        "gpt-4.1-mini",
		MaxDocuments: 6,
		Policy:       DefaultPolicy(),
	}, nil)
}

func sampleResult() domain.SummaryResult {
	return domain.SummaryResult{
		AnswerHTML: "<p>Battery capacity declines slowly.</p>",
		Sources: []domain.Source{
			{Title: "Battery care", URL: "https://example.com/battery", Excerpt: "Tips"},
		},
	}
}

func TestSummaryCache_NamespaceStartsAtOne(t *testing.T) {
	c := newTestCache(t, store.NewMemoryStore())

	ns, err := c.Namespace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), ns)
}

func TestSummaryCache_BumpNamespaceIsMonotonic(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, store.NewMemoryStore())

	first, err := c.BumpNamespace(ctx)
	require.NoError(t, err)
	second, err := c.BumpNamespace(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), first)
	assert.Equal(t, int64(3), second)

	ns, err := c.Namespace(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, ns)
}

func TestSummaryCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, store.NewMemoryStore())

	key, err := c.Key(ctx, "battery degradation")
	require.NoError(t, err)

	_, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, key, sampleResult()))

	got, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, sampleResult(), *got)
}

func TestSummaryCache_BumpInvalidatesWithoutDeleting(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c := newTestCache(t, s)

	oldKey, err := c.Key(ctx, "battery degradation")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, oldKey, sampleResult()))

	_, err = c.BumpNamespace(ctx)
	require.NoError(t, err)

	newKey, err := c.Key(ctx, "battery degradation")
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, newKey)

	_, found, err := c.Get(ctx, newKey)
	require.NoError(t, err)
	assert.False(t, found, "lookup after a namespace bump must miss")

	_, found, err = s.Get(ctx, oldKey)
	require.NoError(t, err)
	assert.True(t, found, "old entry is left to expire on its own")
}

func TestSummaryCache_KeyIgnoresCaseAndWhitespace(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, store.NewMemoryStore())

	a, err := c.Key(ctx, "Battery  Degradation")
	require.NoError(t, err)
	b, err := c.Key(ctx, "battery degradation")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildKey_DependsOnProviderSettings(t *testing.T) {
	base, err := BuildKey(1, "gpt-4.1-mini", 6, "range")
	require.NoError(t, err)

	otherModel, _ := BuildKey(1, "gpt-4o", 6, "range")
	otherDocs, _ := BuildKey(1, "gpt-4.1-mini", 5, "range")
	otherNS, _ := BuildKey(2, "gpt-4.1-mini", 6, "range")

	assert.NotEqual(t, base, otherModel)
	assert.NotEqual(t, base, otherDocs)
	assert.NotEqual(t, base, otherNS)
	assert.Contains(t, base, summaryKeyPrefix)
}

func TestSummaryCache_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c := newTestCache(t, s)

	key, err := c.Key(ctx, "corrupt")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, key, []byte("{not json"), time.Hour))

	_, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, _ = s.Get(ctx, key)
	assert.False(t, found)
}

func TestSummaryCache_PurgeIndexed(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c := newTestCache(t, s)

	var keys []string
	for i := 0; i < 3; i++ {
		key, err := c.Key(ctx, fmt.Sprintf("query %d", i))
		require.NoError(t, err)
		require.NoError(t, c.Set(ctx, key, sampleResult()))
		keys = append(keys, key)
	}

	deleted, err := c.PurgeIndexed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	for _, key := range keys {
		_, found, _ := s.Get(ctx, key)
		assert.False(t, found)
	}

	deleted, err = c.PurgeIndexed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestSummaryCache_IndexIsCapped(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c := New(s, Options{Model: "m", MaxDocuments: 1, Policy: DefaultPolicy(), IndexLimit: 2}, nil)

	for i := 0; i < 4; i++ {
		key, err := c.Key(ctx, fmt.Sprintf("query %d", i))
		require.NoError(t, err)
		require.NoError(t, c.Set(ctx, key, sampleResult()))
	}

	deleted, err := c.PurgeIndexed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}

func TestSummaryCache_NamespaceWorksWithEmptyIndex(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c := newTestCache(t, s)

	key, err := c.Key(ctx, "battery")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, key, sampleResult()))
	require.NoError(t, s.Delete(ctx, indexKey))

	_, err = c.BumpNamespace(ctx)
	require.NoError(t, err)

	key, err = c.Key(ctx, "battery")
	require.NoError(t, err)
	_, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}
