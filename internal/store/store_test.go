package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/riviantrackr/aisearch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type storeFactory func(t *testing.T, clock *fakeClock) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, clock *fakeClock) Store {
			return NewMemoryStoreWithClock(clock.Now)
		},
		"sqlite": func(t *testing.T, clock *fakeClock) Store {
			s, err := OpenSQLite(context.Background(), ":memory:")
			require.NoError(t, err)
			s.now = clock.Now
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t, newFakeClock())

			_, found, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Set(ctx, "k", []byte("v1"), time.Minute))
			require.NoError(t, s.Set(ctx, "k", []byte("v2"), time.Minute))

			value, found, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []byte("v2"), value)

			require.NoError(t, s.Delete(ctx, "k"))
			_, found, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestStore_LazyExpiry(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := factory(t, clock)

			require.NoError(t, s.Set(ctx, "short", []byte("x"), time.Minute))
			require.NoError(t, s.Set(ctx, "forever", []byte("y"), 0))

			clock.Advance(59 * time.Second)
			_, found, _ := s.Get(ctx, "short")
			assert.True(t, found)

			clock.Advance(time.Second)
			_, found, _ = s.Get(ctx, "short")
			assert.False(t, found, "entry must be absent once its ttl has elapsed")

			clock.Advance(365 * 24 * time.Hour)
			_, found, _ = s.Get(ctx, "forever")
			assert.True(t, found)
		})
	}
}

func TestStore_IncrementAndCounter(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := factory(t, clock)

			n, err := s.Counter(ctx, "c")
			require.NoError(t, err)
			assert.Equal(t, int64(0), n)

			for want := int64(1); want <= 3; want++ {
				got, err := s.Increment(ctx, "c", 70*time.Second)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}

			n, err = s.Counter(ctx, "c")
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)

			// A later increment keeps the original deadline.
			clock.Advance(60 * time.Second)
			_, err = s.Increment(ctx, "c", 70*time.Second)
			require.NoError(t, err)
			clock.Advance(10 * time.Second)

			n, err = s.Counter(ctx, "c")
			require.NoError(t, err)
			assert.Equal(t, int64(0), n)

			got, err := s.Increment(ctx, "c", 70*time.Second)
			require.NoError(t, err)
			assert.Equal(t, int64(1), got, "expired counter restarts at 1")
		})
	}
}

func TestStore_SweepExpired(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := factory(t, clock)

			require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Second))
			require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))
			_, err := s.Increment(ctx, "c", time.Second)
			require.NoError(t, err)

			clock.Advance(2 * time.Second)

			removed, err := s.(Sweeper).SweepExpired(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2), removed)

			_, found, _ := s.Get(ctx, "b")
			assert.True(t, found)
		})
	}
}

func TestMemoryStore_ConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Increment(ctx, "c", time.Minute)
		}()
	}
	wg.Wait()

	n, err := s.Counter(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)
}

func TestSQLiteStore_RecordSearchEvent(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RecordSearchEvent(ctx, domain.SearchEvent{
		Query:        "battery degradation",
		ResultsCount: 3,
		AISuccess:    true,
		CacheHit:     domain.CacheHit(false),
		Source:       domain.EventSourceServer,
	}))
	require.NoError(t, s.RecordSearchEvent(ctx, domain.SearchEvent{
		Query:     "x",
		AIError:   "query must be at least 2 characters",
		ErrorCode: domain.ErrCodeInvalidQuery,
		Source:    domain.EventSourceServer,
	}))

	var total, nullHits int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_events`).Scan(&total))
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_events WHERE cache_hit IS NULL`).Scan(&nullHits))
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, nullHits)
}
