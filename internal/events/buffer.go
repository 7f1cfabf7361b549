package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/riviantrackr/aisearch/internal/domain"
)

// DefaultBufferSize bounds how many events wait for a flush.
const DefaultBufferSize = 1000

// BufferedSink queues events in memory and writes them to a backend when
// Flush is called, keeping database writes off the request path. When the
// queue is full the oldest event is dropped.
type BufferedSink struct {
	backend Recorder
	limit   int
	logger  *slog.Logger

	mu      sync.Mutex
	queue   []domain.SearchEvent
	dropped int
}

// NewBufferedSink creates a BufferedSink. A limit <= 0 uses DefaultBufferSize.
func NewBufferedSink(backend Recorder, limit int, logger *slog.Logger) *BufferedSink {
	if limit <= 0 {
		limit = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BufferedSink{backend: backend, limit: limit, logger: logger}
}

func (s *BufferedSink) RecordSearchEvent(ctx context.Context, event domain.SearchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) >= s.limit {
		s.queue = s.queue[1:]
		s.dropped++
	}
	s.queue = append(s.queue, event)
	return nil
}

// Pending returns the number of queued events.
func (s *BufferedSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Flush writes queued events in order. Events that fail to write stay
// queued ahead of anything recorded meanwhile.
func (s *BufferedSink) Flush(ctx context.Context) (int, error) {
	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	dropped := s.dropped
	s.dropped = 0
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.Warn("search event buffer overflowed", "dropped", dropped)
	}

	for i, event := range batch {
		if err := s.backend.RecordSearchEvent(ctx, event); err != nil {
			s.requeue(batch[i:])
			return i, fmt.Errorf("failed to write search event: %w", err)
		}
	}
	return len(batch), nil
}

func (s *BufferedSink) requeue(events []domain.SearchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := append(append([]domain.SearchEvent{}, events...), s.queue...)
	if over := len(merged) - s.limit; over > 0 {
		merged = merged[over:]
		s.dropped += over
	}
	s.queue = merged
}
