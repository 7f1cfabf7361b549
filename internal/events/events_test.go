package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/riviantrackr/aisearch/internal/domain"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordSearchEvent(ctx context.Context, event domain.SearchEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func event(q string) domain.SearchEvent {
	return domain.SearchEvent{Query: q, AISuccess: true, CacheHit: domain.CacheHit(false)}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sink.RecordSearchEvent(context.Background(), domain.SearchEvent{
		Query:     "battery",
		AIError:   "AI provider is temporarily unavailable (HTTP 500)",
		ErrorCode: domain.ErrCodeProviderError,
		CacheHit:  domain.CacheHit(false),
		Source:    domain.EventSourceServer,
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, `"msg":"search_event"`)
	assert.Contains(t, out, `"cache_hit":false`)
	assert.Contains(t, out, `"error_code":"PROVIDER_ERROR"`)
}

func TestLogSink_NilCacheHitOmitted(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sink.RecordSearchEvent(context.Background(), domain.SearchEvent{Query: "x"}))
	assert.NotContains(t, buf.String(), "cache_hit")
}

func TestMulti_RecordsToAll(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	failing := new(MockRecorder)
	failing.On("RecordSearchEvent", mock.Anything, mock.Anything).Return(errors.New("db down"))

	err := Multi{a, failing, b}.RecordSearchEvent(context.Background(), event("battery"))

	require.Error(t, err)
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestStamp(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	stamped := Stamp(domain.SearchEvent{Query: "x"}, now)
	assert.Equal(t, now, stamped.Timestamp)
	assert.Equal(t, domain.EventSourceServer, stamped.Source)

	session := Stamp(domain.SearchEvent{Source: domain.EventSourceSession}, now)
	assert.Equal(t, domain.EventSourceSession, session.Source)
}

func TestBufferedSink_Flush(t *testing.T) {
	backend := NewMemorySink()
	sink := NewBufferedSink(backend, 10, nil)

	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, sink.RecordSearchEvent(context.Background(), event(q)))
	}
	assert.Equal(t, 3, sink.Pending())
	assert.Empty(t, backend.Events())

	n, err := sink.Flush(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, sink.Pending())
	require.Len(t, backend.Events(), 3)
	assert.Equal(t, "a", backend.Events()[0].Query)
}

func TestBufferedSink_DropsOldestWhenFull(t *testing.T) {
	backend := NewMemorySink()
	sink := NewBufferedSink(backend, 2, nil)

	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, sink.RecordSearchEvent(context.Background(), event(q)))
	}

	_, err := sink.Flush(context.Background())

	require.NoError(t, err)
	got := backend.Events()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Query)
	assert.Equal(t, "c", got[1].Query)
}

func TestBufferedSink_FailedWritesStayQueued(t *testing.T) {
	backend := new(MockRecorder)
	backend.On("RecordSearchEvent", mock.Anything, mock.MatchedBy(func(e domain.SearchEvent) bool { return e.Query == "a" })).Return(nil)
	backend.On("RecordSearchEvent", mock.Anything, mock.MatchedBy(func(e domain.SearchEvent) bool { return e.Query == "b" })).Return(errors.New("db down")).Once()
	backend.On("RecordSearchEvent", mock.Anything, mock.Anything).Return(nil)

	sink := NewBufferedSink(backend, 10, nil)
	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, sink.RecordSearchEvent(context.Background(), event(q)))
	}

	n, err := sink.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, sink.Pending())

	n, err = sink.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, sink.Pending())
}
