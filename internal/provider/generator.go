package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riviantrackr/aisearch/internal/domain"
	"github.com/riviantrackr/aisearch/internal/telemetry"
)

// DefaultMaxTokens caps the completion length.
const DefaultMaxTokens = 1200

// CallObserver receives one observation per upstream call attempt.
type CallObserver interface {
	ObserveProviderCall(ctx context.Context, status string, elapsed time.Duration)
}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	Model     string
	SiteName  string
	MaxTokens int
	// AttemptTimeout bounds each call. Zero leaves it to the client.
	AttemptTimeout time.Duration
	Retry          RetryPolicy
}

// Generator produces summaries with a ChatClient, retrying retryable
// failures according to its RetryPolicy.
type Generator struct {
	client   ChatClient
	cfg      GeneratorConfig
	logger   *slog.Logger
	observer CallObserver
	sleep    func(ctx context.Context, d time.Duration) error
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithObserver reports each attempt to o.
func WithObserver(o CallObserver) GeneratorOption {
	return func(g *Generator) { g.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator creates a Generator.
func NewGenerator(client ChatClient, cfg GeneratorConfig, opts ...GeneratorOption) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	g := &Generator{
		client: client,
		cfg:    cfg,
		logger: slog.Default(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	return g.cfg.Model
}

// GenerateSummary asks the provider to summarize docs for query. Failures
// are returned as *domain.DomainError with code PROVIDER_ERROR or
// PARSE_ERROR; the message is the last attempt's diagnostic.
func (g *Generator) GenerateSummary(ctx context.Context, query string, docs []domain.SearchDocument) (*domain.SummaryResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "provider.generate_summary", telemetry.SpanAttributes{
		Operation: "generate_summary",
		Provider:  g.client.Name(),
		Model:     g.cfg.Model,
	})
	defer span.End()

	system, user := BuildPrompt(g.cfg.SiteName, query, docs)
	req := ChatRequest{
		Model:     g.cfg.Model,
		System:    system,
		User:      user,
		MaxTokens: g.cfg.MaxTokens,
		JSONMode:  SupportsJSONMode(g.cfg.Model),
	}

	delays := g.cfg.Retry.newBackOff()
	maxAttempts := g.cfg.Retry.Attempts()

	var lastErr *CallError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := g.attempt(ctx, req)
		if err == nil {
			return result, nil
		}

		lastErr = asCallError(err)
		g.logger.Warn("provider attempt failed",
			"provider", g.client.Name(),
			"model", g.cfg.Model,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"status", lastErr.StatusCode,
			"retryable", lastErr.Retryable,
			"error", lastErr.Error(),
		)

		if !lastErr.Retryable || attempt == maxAttempts {
			break
		}

		if err := g.sleep(ctx, delays.NextBackOff()); err != nil {
			lastErr = transportError(err)
			break
		}
	}

	span.SetError(lastErr)
	return nil, ToDomainError(lastErr)
}

func (g *Generator) attempt(ctx context.Context, req ChatRequest) (*domain.SummaryResult, error) {
	if g.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.client.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		g.observe(ctx, callStatus(asCallError(err)), elapsed)
		return nil, err
	}

	if resp.Refused() {
		g.observe(ctx, "refused", elapsed)
		return nil, refusalError(resp)
	}

	result, err := ParseSummary(resp.Content)
	if err != nil {
		g.observe(ctx, "parse_error", elapsed)
		return nil, parseError(resp, err)
	}

	g.observe(ctx, "ok", elapsed)
	return &result, nil
}

func (g *Generator) observe(ctx context.Context, status string, elapsed time.Duration) {
	if g.observer != nil {
		g.observer.ObserveProviderCall(ctx, status, elapsed)
	}
}

func callStatus(ce *CallError) string {
	if ce.StatusCode != 0 {
		return fmt.Sprintf("http_%d", ce.StatusCode)
	}
	return "transport_error"
}
