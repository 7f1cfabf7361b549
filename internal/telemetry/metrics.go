package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/riviantrackr/aisearch"

// Summary request outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeCacheHit  = "cache_hit"
	OutcomeNoResults = "no_results"
	OutcomeRejected  = "rejected"
	OutcomeLimited   = "rate_limited"
	OutcomeError     = "error"
)

// Recorder receives pipeline measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordSummary(ctx context.Context, outcome string)
	RecordCacheLookup(ctx context.Context, hit bool)
	RecordRateLimitDenied(ctx context.Context, scope string)
	ObserveProviderCall(ctx context.Context, status string, elapsed time.Duration)
}

// Metrics records pipeline measurements through an OpenTelemetry meter
// backed by a Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	summaries        metric.Int64Counter
	cacheLookups     metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
	providerCalls    metric.Int64Counter
	providerDuration metric.Float64Histogram
}

// NewMetrics creates Metrics with its own registry, so several instances
// can coexist in tests.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	m, err := newMetrics(provider.Meter(meterName))
	if err != nil {
		return nil, err
	}
	m.registry = registry
	m.provider = provider
	return m, nil
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	summaries, err := meter.Int64Counter(
		"aisearch.summary.requests",
		metric.WithDescription("Summary requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"aisearch.cache.lookups",
		metric.WithDescription("Summary cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	rateLimitDenied, err := meter.Int64Counter(
		"aisearch.ratelimit.denied",
		metric.WithDescription("Requests refused by a rate limit, by scope"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	providerCalls, err := meter.Int64Counter(
		"aisearch.provider.calls",
		metric.WithDescription("Upstream provider attempts by status"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	providerDuration, err := meter.Float64Histogram(
		"aisearch.provider.duration_ms",
		metric.WithDescription("Upstream provider attempt duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		summaries:        summaries,
		cacheLookups:     cacheLookups,
		rateLimitDenied:  rateLimitDenied,
		providerCalls:    providerCalls,
		providerDuration: providerDuration,
	}, nil
}

func (m *Metrics) RecordSummary(ctx context.Context, outcome string) {
	m.summaries.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, scope string) {
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}

func (m *Metrics) ObserveProviderCall(ctx context.Context, status string, elapsed time.Duration) {
	opt := metric.WithAttributes(attribute.String("status", status))
	m.providerCalls.Add(ctx, 1, opt)
	m.providerDuration.Record(ctx, float64(elapsed.Milliseconds()), opt)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// NoopRecorder discards every measurement.
type NoopRecorder struct{}

func (NoopRecorder) RecordSummary(context.Context, string) {}
func (NoopRecorder) RecordCacheLookup(context.Context, bool) {}
func (NoopRecorder) RecordRateLimitDenied(context.Context, string) {}
func (NoopRecorder) ObserveProviderCall(context.Context, string, time.Duration) {}
