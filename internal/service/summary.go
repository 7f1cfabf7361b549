// Package service holds the summary orchestrator and the admin actions
// that act on its cache.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/riviantrackr/aisearch/internal/botfilter"
	"github.com/riviantrackr/aisearch/internal/cache"
	"github.com/riviantrackr/aisearch/internal/domain"
	"github.com/riviantrackr/aisearch/internal/events"
	"github.com/riviantrackr/aisearch/internal/ratelimit"
	"github.com/riviantrackr/aisearch/internal/sanitize"
	"github.com/riviantrackr/aisearch/internal/telemetry"
)

// DocumentSelector supplies candidate articles for a query.
type DocumentSelector interface {
	Select(ctx context.Context, query string, limit int, exclude ...string) ([]domain.SearchDocument, error)
}

// SummaryGenerator produces a summary from the provider.
type SummaryGenerator interface {
	GenerateSummary(ctx context.Context, query string, docs []domain.SearchDocument) (*domain.SummaryResult, error)
}

// Options configures a SummaryService.
type Options struct {
	Enabled         bool
	MaxDocuments    int
	GlobalRateLimit int
	IPRateLimit     int
	// GenerateTimeout bounds a provider call including its retries. The call
	// is detached from the request, so this is its only deadline.
	GenerateTimeout time.Duration
	SingleFlight    bool
}

// SummaryRequest is one inbound summary request.
type SummaryRequest struct {
	Query     string
	ClientIP  string
	UserAgent string
	// Trusted callers skip the bot filter and the per-IP limiter.
	Trusted bool
}

// SummaryOutput is a successful summary response.
type SummaryOutput struct {
	Result       domain.SummaryResult
	ResultsCount int
	// CacheHit is nil when no cache lookup happened.
	CacheHit *bool
}

// SummaryService runs the summary pipeline: validate, gate, select
// documents, consult the cache, and on a miss call the provider under the
// global budget.
type SummaryService struct {
	opts      Options
	selector  DocumentSelector
	generator SummaryGenerator
	cache     *cache.SummaryCache
	governor  *ratelimit.Governor
	sanitizer *sanitize.Sanitizer
	recorder  events.Recorder
	metrics   telemetry.Recorder
	logger    *slog.Logger
	now       func() time.Time

	flights singleflight.Group
}

// ServiceOption configures a SummaryService.
type ServiceOption func(*SummaryService)

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Recorder) ServiceOption {
	return func(s *SummaryService) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *SummaryService) {
		s.logger = l
	}
}

// WithClock overrides the clock used for event timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *SummaryService) {
		s.now = now
	}
}

// NewSummaryService creates a SummaryService. A nil generator means no
// provider is configured and every request fails with NOT_CONFIGURED.
func NewSummaryService(
	opts Options,
	selector DocumentSelector,
	generator SummaryGenerator,
	summaryCache *cache.SummaryCache,
	governor *ratelimit.Governor,
	recorder events.Recorder,
	svcOpts ...ServiceOption,
) *SummaryService {
	if opts.MaxDocuments <= 0 {
		opts.MaxDocuments = 6
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 90 * time.Second
	}
	s := &SummaryService{
		opts:      opts,
		selector:  selector,
		generator: generator,
		cache:     summaryCache,
		governor:  governor,
		sanitizer: sanitize.New(),
		recorder:  recorder,
		metrics:   telemetry.NoopRecorder{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range svcOpts {
		opt(s)
	}
	return s
}

// Summarize answers req. Errors are *domain.DomainError values; every path
// except bot and per-IP rejections records exactly one search event.
// Gating runs first so that every request, valid or not, counts against
// the per-IP budget.
func (s *SummaryService) Summarize(ctx context.Context, req SummaryRequest) (*SummaryOutput, error) {
	if !req.Trusted {
		if err := s.gate(ctx, req.ClientIP, req.UserAgent); err != nil {
			if errors.Is(err, domain.ErrBotDetected) {
				s.metrics.RecordSummary(ctx, telemetry.OutcomeRejected)
			} else {
				s.metrics.RecordSummary(ctx, telemetry.OutcomeLimited)
			}
			return nil, err
		}
	}

	if !s.opts.Enabled || s.generator == nil {
		s.record(ctx, domain.SearchEvent{Query: req.Query}, domain.ErrNotConfigured)
		s.metrics.RecordSummary(ctx, telemetry.OutcomeRejected)
		return nil, domain.ErrNotConfigured
	}

	query, err := domain.ValidateQuery(req.Query)
	if err != nil {
		s.record(ctx, domain.SearchEvent{Query: req.Query}, err)
		s.metrics.RecordSummary(ctx, telemetry.OutcomeRejected)
		return nil, err
	}

	docs, err := s.selector.Select(ctx, query, s.opts.MaxDocuments)
	if err != nil {
		err = asDomainError(err, domain.ErrSearchFailed)
		s.record(ctx, domain.SearchEvent{Query: query}, err)
		s.metrics.RecordSummary(ctx, telemetry.OutcomeError)
		return nil, err
	}

	if len(docs) == 0 {
		s.record(ctx, domain.SearchEvent{Query: query, AISuccess: true}, nil)
		s.metrics.RecordSummary(ctx, telemetry.OutcomeNoResults)
		return &SummaryOutput{Result: *domain.NoMatchesResult()}, nil
	}

	key, err := s.cache.Key(ctx, query)
	if err != nil {
		err = domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to derive cache key", err)
		s.record(ctx, domain.SearchEvent{Query: query, ResultsCount: len(docs)}, err)
		s.metrics.RecordSummary(ctx, telemetry.OutcomeError)
		return nil, err
	}

	cached, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache lookup failed, treating as miss", "error", err)
	}
	s.metrics.RecordCacheLookup(ctx, found)
	if found {
		telemetry.AddBreadcrumb(ctx, "cache", "summary cache hit")
		s.record(ctx, domain.SearchEvent{Query: query, ResultsCount: len(docs), AISuccess: true, CacheHit: domain.CacheHit(true)}, nil)
		s.metrics.RecordSummary(ctx, telemetry.OutcomeCacheHit)
		return &SummaryOutput{Result: *cached, ResultsCount: len(docs), CacheHit: domain.CacheHit(true)}, nil
	}

	result, err := s.fill(ctx, key, query, docs)
	missed := domain.SearchEvent{Query: query, ResultsCount: len(docs), CacheHit: domain.CacheHit(false)}
	if err != nil {
		s.record(ctx, missed, err)
		if errors.Is(err, domain.ErrProviderBudget) {
			s.metrics.RecordSummary(ctx, telemetry.OutcomeLimited)
		} else {
			s.metrics.RecordSummary(ctx, telemetry.OutcomeError)
		}
		return nil, err
	}

	missed.AISuccess = true
	s.record(ctx, missed, nil)
	s.metrics.RecordSummary(ctx, telemetry.OutcomeSuccess)
	return &SummaryOutput{Result: result, ResultsCount: len(docs), CacheHit: domain.CacheHit(false)}, nil
}

// gate applies the bot filter and the per-IP limiter. Rejections are not
// recorded as search events.
func (s *SummaryService) gate(ctx context.Context, clientIP, userAgent string) error {
	if botfilter.IsBot(userAgent) {
		return domain.ErrBotDetected
	}

	allowed, err := s.governor.Allow(ctx, ratelimit.IPScope(clientIP), s.opts.IPRateLimit)
	if err != nil {
		s.logger.Warn("per-IP rate check failed, allowing request", "error", err)
		return nil
	}
	if !allowed {
		s.metrics.RecordRateLimitDenied(ctx, "ip")
		return domain.ErrIPRateLimited
	}
	return nil
}

type fillResult struct {
	result domain.SummaryResult
	err    error
}

// fill produces the summary for a cache miss. Identical concurrent misses
// share one provider call when single-flight is on. The call runs on a
// context detached from the request so a finished answer still reaches the
// cache after the caller has gone.
func (s *SummaryService) fill(ctx context.Context, key, query string, docs []domain.SearchDocument) (domain.SummaryResult, error) {
	detached := context.WithoutCancel(ctx)

	out := make(chan fillResult, 1)
	go func() {
		if !s.opts.SingleFlight {
			res, err := s.generate(detached, key, query, docs)
			out <- fillResult{result: res, err: err}
			return
		}
		v, err, _ := s.flights.Do(key, func() (any, error) {
			return s.generate(detached, key, query, docs)
		})
		res, _ := v.(domain.SummaryResult)
		out <- fillResult{result: res, err: err}
	}()

	select {
	case r := <-out:
		return r.result, r.err
	case <-ctx.Done():
		return domain.SummaryResult{}, domain.NewDomainErrorWithCause(
			domain.ErrRequestCanceled.Code, domain.ErrRequestCanceled.Message, ctx.Err())
	}
}

// generate spends one unit of global budget, calls the provider and caches
// the sanitized result.
func (s *SummaryService) generate(ctx context.Context, key, query string, docs []domain.SearchDocument) (domain.SummaryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	defer cancel()

	allowed, err := s.governor.Allow(ctx, ratelimit.GlobalScope, s.opts.GlobalRateLimit)
	if err != nil {
		s.logger.Warn("global rate check failed, allowing provider call", "error", err)
		allowed = true
	}
	if !allowed {
		s.metrics.RecordRateLimitDenied(ctx, ratelimit.GlobalScope)
		return domain.SummaryResult{}, domain.ErrProviderBudget
	}

	generated, err := s.generator.GenerateSummary(ctx, query, docs)
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return domain.SummaryResult{}, asDomainError(err, domain.NewDomainError(domain.ErrCodeProviderError, "AI provider request failed"))
	}

	result := s.sanitizer.Summary(*generated)
	if err := s.cache.Set(ctx, key, result); err != nil {
		s.logger.Warn("failed to cache summary", "error", err)
	}
	return result, nil
}

// record appends one search event. Failures are logged and swallowed.
func (s *SummaryService) record(ctx context.Context, event domain.SearchEvent, err error) {
	if err != nil {
		event.AISuccess = false
		event.AIError = domain.ErrorMessage(err)
		event.ErrorCode = domain.ErrorCode(err)
	}
	event.Query = domain.ClampQuery(event.Query)
	event = events.Stamp(event, s.now())
	if recErr := s.recorder.RecordSearchEvent(context.WithoutCancel(ctx), event); recErr != nil {
		s.logger.Warn("failed to record search event", "error", recErr)
	}
}

// RateLimitStatus reports the per-IP budget for clientIP.
func (s *SummaryService) RateLimitStatus(ctx context.Context, clientIP string) (ratelimit.Status, error) {
	return s.governor.Status(ctx, ratelimit.IPScope(clientIP), s.opts.IPRateLimit)
}

// SessionHit is a cache hit served from the browser session.
type SessionHit struct {
	Query        string
	ResultsCount int
	ClientIP     string
	UserAgent    string
}

// RecordSessionHit records a summary the front-end served from its own
// session cache. It is gated like Summarize.
func (s *SummaryService) RecordSessionHit(ctx context.Context, hit SessionHit) error {
	if err := s.gate(ctx, hit.ClientIP, hit.UserAgent); err != nil {
		return err
	}
	query, err := domain.ValidateQuery(hit.Query)
	if err != nil {
		return err
	}
	if hit.ResultsCount < 0 {
		hit.ResultsCount = 0
	}

	s.record(ctx, domain.SearchEvent{
		Query:        query,
		ResultsCount: hit.ResultsCount,
		AISuccess:    true,
		CacheHit:     domain.CacheHit(true),
		Source:       domain.EventSourceSession,
	}, nil)
	return nil
}

func asDomainError(err error, fallback *domain.DomainError) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de
	}
	return domain.NewDomainErrorWithCause(fallback.Code, fallback.Message, err)
}
