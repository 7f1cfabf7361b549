// Package selector picks the candidate articles a summary is grounded on
// and trims them to the size the prompt allows.
package selector

import (
	"context"
	"log/slog"
	"strings"

	"github.com/riviantrackr/aisearch/internal/domain"
)

// Source is a full-text search backend.
type Source interface {
	Search(ctx context.Context, query string, limit int, exclude []string) ([]domain.SearchDocument, error)
}

// Limits bounds the size of each selected document.
type Limits struct {
	// ExcerptChars and BodyChars are rune limits. Zero disables the limit.
	ExcerptChars int
	BodyChars    int
	// TokenBudget caps the combined document text in tokens. Zero disables it.
	TokenBudget int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{ExcerptChars: 300, BodyChars: 1500}
}

// Selector wraps a Source with truncation.
type Selector struct {
	source  Source
	limits  Limits
	counter TokenCounter
	logger  *slog.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithTokenCounter overrides the counter used for the token budget.
func WithTokenCounter(c TokenCounter) Option {
	return func(s *Selector) {
		s.counter = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) {
		s.logger = l
	}
}

// New creates a Selector.
func New(source Source, limits Limits, opts ...Option) *Selector {
	s := &Selector{
		source: source,
		limits: limits,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.counter == nil && limits.TokenBudget > 0 {
		s.counter = NewTiktokenCounter(s.logger)
	}
	return s
}

// Select returns at most limit documents for query, excluding the given
// IDs. Backend failures are returned as domain.ErrSearchFailed.
func (s *Selector) Select(ctx context.Context, query string, limit int, exclude ...string) ([]domain.SearchDocument, error) {
	if limit <= 0 {
		return []domain.SearchDocument{}, nil
	}

	docs, err := s.source.Search(ctx, query, limit, exclude)
	if err != nil {
		s.logger.Error("content search failed", "error", err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrSearchFailed.Code, domain.ErrSearchFailed.Message, err)
	}

	if len(docs) > limit {
		docs = docs[:limit]
	}

	out := make([]domain.SearchDocument, 0, len(docs))
	for _, d := range docs {
		d.Title = strings.TrimSpace(d.Title)
		d.Excerpt = truncateRunes(collapseSpace(d.Excerpt), s.limits.ExcerptChars)
		d.Body = truncateRunes(collapseSpace(d.Body), s.limits.BodyChars)
		out = append(out, d)
	}

	if s.limits.TokenBudget > 0 && s.counter != nil {
		out = applyTokenBudget(out, s.limits.TokenBudget, s.counter)
	}
	return out, nil
}

// applyTokenBudget keeps documents in rank order until the budget is spent.
// The first document is always kept, with its body cut to fit.
func applyTokenBudget(docs []domain.SearchDocument, budget int, counter TokenCounter) []domain.SearchDocument {
	remaining := budget
	out := make([]domain.SearchDocument, 0, len(docs))

	for i, d := range docs {
		head := counter.Count(d.Title) + counter.Count(d.Excerpt)
		body := counter.Count(d.Body)

		if head+body <= remaining {
			remaining -= head + body
			out = append(out, d)
			continue
		}

		if i == 0 {
			d.Body = counter.Truncate(d.Body, max(remaining-head, 0))
			out = append(out, d)
		}
		break
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}
