package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riviantrackr/aisearch/internal/api/handlers"
	"github.com/riviantrackr/aisearch/internal/cache"
	"github.com/riviantrackr/aisearch/internal/domain"
	"github.com/riviantrackr/aisearch/internal/events"
	"github.com/riviantrackr/aisearch/internal/ratelimit"
	"github.com/riviantrackr/aisearch/internal/selector"
	"github.com/riviantrackr/aisearch/internal/service"
	"github.com/riviantrackr/aisearch/internal/store"
	"github.com/riviantrackr/aisearch/internal/telemetry"
)

const adminToken = "test-admin-token"

type stubGenerator struct {
	calls atomic.Int32
}

func (g *stubGenerator) GenerateSummary(ctx context.Context, query string, docs []domain.SearchDocument) (*domain.SummaryResult, error) {
	g.calls.Add(1)
	sources := make([]domain.Source, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, domain.Source{Title: d.Title, URL: d.URL})
	}
	return &domain.SummaryResult{AnswerHTML: "<p>Summary for " + query + "</p>", Sources: sources}, nil
}

type stubModels struct{}

func (stubModels) ListModels(ctx context.Context, refresh bool) ([]string, error) {
	return []string{"gpt-4.1-mini"}, nil
}

type testServer struct {
	srv       *httptest.Server
	generator *stubGenerator
	sink      *events.MemorySink
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()

	st := store.NewMemoryStore()
	summaryCache := cache.New(st, cache.Options{Model: "gpt-4.1-mini", MaxDocuments: 6, Policy: cache.DefaultPolicy()}, nil)
	docs := selector.NewStaticSource([]domain.SearchDocument{
		{ID: "1", Title: "R1T battery degradation report", URL: "https://example.com/1"},
		{ID: "2", Title: "Battery warranty explained", URL: "https://example.com/2"},
		{ID: "3", Title: "Cold weather battery degradation", URL: "https://example.com/3"},
	})

	metrics, err := telemetry.NewMetrics()
	require.NoError(t, err)
	t.Cleanup(func() { _ = metrics.Shutdown(context.Background()) })

	ts := &testServer{generator: &stubGenerator{}, sink: events.NewMemorySink()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := service.NewSummaryService(
		service.Options{Enabled: true, MaxDocuments: 6, GlobalRateLimit: 30, IPRateLimit: 3, SingleFlight: true},
		selector.New(docs, selector.DefaultLimits()),
		ts.generator,
		summaryCache,
		ratelimit.NewGovernor(st),
		ts.sink,
		service.WithMetrics(metrics),
		service.WithLogger(logger),
	)

	router := NewRouter(RouterConfig{
		SummaryHandler: handlers.NewSummaryHandler(svc),
		AdminHandler:   handlers.NewAdminHandler(service.NewAdminService(summaryCache, stubModels{}, logger)),
		MetricsHandler: metrics.Handler(),
		AdminToken:     token,
		Logger:         logger,
	})

	ts.srv = httptest.NewServer(router)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/131.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestRouter_Health(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, map[string]any{"data": map[string]any{"status": "ok"}}, decode(t, resp))
}

func TestRouter_SummaryMissThenHit(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodGet, "/summary?q=battery+degradation", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode(t, resp)
	assert.Equal(t, false, first["cache_hit"])
	assert.Len(t, first["sources"], 3)
	assert.Equal(t, "3", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))

	resp = ts.do(t, http.MethodGet, "/summary?q=battery+degradation", nil, nil)
	second := decode(t, resp)
	assert.Equal(t, true, second["cache_hit"])
	assert.Equal(t, first["answer_html"], second["answer_html"])
	assert.EqualValues(t, 1, ts.generator.calls.Load())
	assert.Len(t, ts.sink.Events(), 2)
}

func TestRouter_SummaryBotAndRateLimit(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodGet, "/summary?q=battery", nil, map[string]string{"User-Agent": "Googlebot/2.1"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "BOT_DETECTED", decode(t, resp)["error_code"])

	for i := 0; i < 3; i++ {
		resp = ts.do(t, http.MethodGet, "/summary?q=battery", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/summary?q=battery", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.Equal(t, "RATE_LIMITED", decode(t, resp)["error_code"])
	assert.Len(t, ts.sink.Events(), 3)
}

func TestRouter_SummaryInvalidQueryIsInline(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodGet, "/summary?q=a", nil, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "INVALID_QUERY", body["error_code"])
	assert.Equal(t, "", body["answer_html"])
}

func TestRouter_LogSessionHit(t *testing.T) {
	ts := newTestServer(t, "")
	form := url.Values{"q": {"battery degradation"}, "results_count": {"3"}}

	resp := ts.do(t, http.MethodPost, "/log-session-hit", strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, resp)["status"])
	recorded := ts.sink.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, domain.EventSourceSession, recorded[0].Source)
}

func TestRouter_Metrics(t *testing.T) {
	ts := newTestServer(t, "")
	ts.do(t, http.MethodGet, "/summary?q=battery", nil, nil)

	resp := ts.do(t, http.MethodGet, "/metrics", nil, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "aisearch_summary_requests")
}

func TestRouter_AdminRoutesAbsentWithoutToken(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodPost, "/admin/cache/clear", nil, map[string]string{"Authorization": "Bearer anything"})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	ts := newTestServer(t, adminToken)

	resp := ts.do(t, http.MethodPost, "/admin/cache/clear", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/admin/cache/clear", nil, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_AdminCacheClearInvalidatesSummaries(t *testing.T) {
	ts := newTestServer(t, adminToken)
	auth := map[string]string{"Authorization": "Bearer " + adminToken}

	ts.do(t, http.MethodGet, "/summary?q=battery", nil, nil)

	resp := ts.do(t, http.MethodPost, "/admin/cache/clear", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"data": map[string]any{"namespace": float64(2)}}, decode(t, resp))

	resp = ts.do(t, http.MethodGet, "/summary?q=battery", nil, nil)
	assert.Equal(t, false, decode(t, resp)["cache_hit"])
	assert.EqualValues(t, 2, ts.generator.calls.Load())
}

func TestRouter_AdminPurgeAndModels(t *testing.T) {
	ts := newTestServer(t, adminToken)
	auth := map[string]string{"Authorization": "Bearer " + adminToken}

	ts.do(t, http.MethodGet, "/summary?q=battery", nil, nil)
	ts.do(t, http.MethodGet, "/summary?q=warranty", nil, nil)

	resp := ts.do(t, http.MethodPost, "/admin/cache/purge", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"data": map[string]any{"deleted": float64(2)}}, decode(t, resp))

	resp = ts.do(t, http.MethodGet, "/admin/models?refresh=1", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"data": map[string]any{"models": []any{"gpt-4.1-mini"}}}, decode(t, resp))
}
