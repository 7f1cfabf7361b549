// Package events records the outcome of each summary request.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/riviantrackr/aisearch/internal/domain"
)

// Recorder appends a SearchEvent to durable storage.
type Recorder interface {
	RecordSearchEvent(ctx context.Context, event domain.SearchEvent) error
}

// LogSink writes events as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) RecordSearchEvent(ctx context.Context, event domain.SearchEvent) error {
	attrs := []any{
		"query", event.Query,
		"results_count", event.ResultsCount,
		"ai_success", event.AISuccess,
		"source", string(event.Source),
	}
	if event.CacheHit != nil {
		attrs = append(attrs, "cache_hit", *event.CacheHit)
	}
	if event.AIError != "" {
		attrs = append(attrs, "ai_error", event.AIError, "error_code", event.ErrorCode)
	}
	s.logger.InfoContext(ctx, "search_event", attrs...)
	return nil
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []domain.SearchEvent
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) RecordSearchEvent(ctx context.Context, event domain.SearchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (s *MemorySink) Events() []domain.SearchEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SearchEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Multi records to every recorder in order, returning the first error after
// trying all of them.
type Multi []Recorder

func (m Multi) RecordSearchEvent(ctx context.Context, event domain.SearchEvent) error {
	var firstErr error
	for _, r := range m {
		if err := r.RecordSearchEvent(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stamp fills the timestamp and source when they are unset.
func Stamp(event domain.SearchEvent, now time.Time) domain.SearchEvent {
	if event.Timestamp.IsZero() {
		event.Timestamp = now.UTC()
	}
	if event.Source == "" {
		event.Source = domain.EventSourceServer
	}
	return event
}
