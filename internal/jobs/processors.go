package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riviantrackr/aisearch/internal/store"
)

// SweepProcessor deletes expired store rows. Reads already ignore expired
// rows, so this only reclaims space.
type SweepProcessor struct {
	sweeper store.Sweeper
	logger  *slog.Logger
}

// NewSweepProcessor creates a SweepProcessor.
func NewSweepProcessor(sweeper store.Sweeper, logger *slog.Logger) *SweepProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepProcessor{sweeper: sweeper, logger: logger}
}

func (p *SweepProcessor) ProcessJobs(ctx context.Context) error {
	n, err := p.sweeper.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep expired entries: %w", err)
	}
	if n > 0 {
		p.logger.Debug("swept expired entries", "count", n)
	}
	return nil
}

// EventFlusher drains a buffered event queue.
type EventFlusher interface {
	Flush(ctx context.Context) (int, error)
}

// FlushProcessor writes buffered search events to durable storage.
type FlushProcessor struct {
	flusher EventFlusher
	logger  *slog.Logger
}

// NewFlushProcessor creates a FlushProcessor.
func NewFlushProcessor(flusher EventFlusher, logger *slog.Logger) *FlushProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlushProcessor{flusher: flusher, logger: logger}
}

func (p *FlushProcessor) ProcessJobs(ctx context.Context) error {
	n, err := p.flusher.Flush(ctx)
	if n > 0 {
		p.logger.Debug("flushed search events", "count", n)
	}
	if err != nil {
		return fmt.Errorf("failed to flush search events: %w", err)
	}
	return nil
}
