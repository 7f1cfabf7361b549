// Package admin holds the aisearchd commands and the wiring they share.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riviantrackr/aisearch/internal/cache"
	"github.com/riviantrackr/aisearch/internal/config"
	"github.com/riviantrackr/aisearch/internal/database"
	"github.com/riviantrackr/aisearch/internal/events"
	"github.com/riviantrackr/aisearch/internal/jobs"
	"github.com/riviantrackr/aisearch/internal/provider"
	"github.com/riviantrackr/aisearch/internal/ratelimit"
	"github.com/riviantrackr/aisearch/internal/repository"
	"github.com/riviantrackr/aisearch/internal/selector"
	"github.com/riviantrackr/aisearch/internal/service"
	"github.com/riviantrackr/aisearch/internal/store"
	"github.com/riviantrackr/aisearch/internal/telemetry"
)

// eventFlushInterval is how often buffered search events are written out.
const eventFlushInterval = 5 * time.Second

type buildOptions struct {
	migrate bool
}

// App is the set of components built from a Config.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *telemetry.Metrics

	Store    store.Store
	Cache    *cache.SummaryCache
	Governor *ratelimit.Governor
	Summary  *service.SummaryService
	Admin    *service.AdminService
	Articles *repository.ArticleRepository

	workers []*jobs.Worker
	started bool
	buffer  *events.BufferedSink
	pool    *pgxpool.Pool
	closers []func() error
}

// NewLogger builds the JSON logger used by every command.
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// buildApp wires the store, selector, provider and services described by cfg.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts buildOptions) (_ *App, err error) {
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	app.Metrics = metrics
	app.closers = append(app.closers, func() error { return metrics.Shutdown(context.Background()) })

	if cfg.NeedsDatabase() {
		if opts.migrate {
			if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
				return nil, err
			}
		}
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, err
		}
		app.pool = pool
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
		logger.Info("connected to database")
	}

	eventBackend, sweeper, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}

	app.Cache = cache.New(app.Store, cache.Options{
		Model:        cfg.Model,
		MaxDocuments: cfg.MaxDocuments,
		Policy: cache.Policy{
			DefaultTTL: cfg.CacheTTL,
			MinTTL:     cfg.CacheTTLMin,
			MaxTTL:     cfg.CacheTTLMax,
		},
	}, logger)
	app.Governor = ratelimit.NewGovernor(app.Store, ratelimit.WithGrace(cfg.RateWindowGrace))

	sel, err := app.openSelector()
	if err != nil {
		return nil, err
	}

	var (
		generator service.SummaryGenerator
		models    service.ModelLister
	)
	if client := newChatClient(cfg); client != nil {
		generator = provider.NewGenerator(client, provider.GeneratorConfig{
			Model:          cfg.Model,
			SiteName:       cfg.SiteName,
			MaxTokens:      cfg.MaxTokens,
			AttemptTimeout: cfg.ProviderTimeout,
			Retry:          provider.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay},
		}, provider.WithObserver(metrics), provider.WithLogger(logger))
		models = provider.NewModelCatalog(client, app.Store, logger)
	} else {
		logger.Warn("no provider API key configured, summaries are disabled", "provider", cfg.Provider)
	}

	var recorder events.Recorder = events.NewLogSink(logger)
	if eventBackend != nil {
		app.buffer = events.NewBufferedSink(eventBackend, events.DefaultBufferSize, logger)
		recorder = events.Multi{recorder, app.buffer}
		app.workers = append(app.workers,
			jobs.NewWorker("event-flush", jobs.NewFlushProcessor(app.buffer, logger), eventFlushInterval, logger))
	}
	if sweeper != nil && cfg.SweepInterval > 0 {
		app.workers = append(app.workers,
			jobs.NewWorker("store-sweep", jobs.NewSweepProcessor(sweeper, logger), cfg.SweepInterval, logger))
	}

	app.Summary = service.NewSummaryService(
		service.Options{
			Enabled:         cfg.Enabled,
			MaxDocuments:    cfg.MaxDocuments,
			GlobalRateLimit: cfg.GlobalRateLimit,
			IPRateLimit:     cfg.IPRateLimit,
			GenerateTimeout: generateTimeout(cfg),
			SingleFlight:    cfg.SingleFlight,
		},
		sel, generator, app.Cache, app.Governor, recorder,
		service.WithMetrics(metrics),
		service.WithLogger(logger),
	)
	app.Admin = service.NewAdminService(app.Cache, models, logger)

	return app, nil
}

// openStore opens the configured KV store. It also returns the durable
// event backend and the expiry sweeper the store provides, if any.
func (a *App) openStore(ctx context.Context) (events.Recorder, store.Sweeper, error) {
	switch a.Config.Store {
	case config.StorePostgres:
		kv := repository.NewKVRepository(a.pool)
		a.Store = kv
		return repository.NewSearchEventRepository(a.pool), kv, nil
	case config.StoreSQLite:
		sq, err := store.OpenSQLite(ctx, a.Config.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		a.Store = sq
		a.closers = append(a.closers, sq.Close)
		return sq, sq, nil
	default:
		mem := store.NewMemoryStore()
		a.Store = mem
		return nil, mem, nil
	}
}

func (a *App) openSelector() (*selector.Selector, error) {
	cfg := a.Config
	var source selector.Source

	switch cfg.Selector {
	case config.SelectorPostgres:
		a.Articles = repository.NewArticleRepository(a.pool)
		source = a.Articles
	case config.SelectorElasticsearch:
		client, err := selector.NewElasticsearchClient(cfg.ElasticsearchURL)
		if err != nil {
			return nil, err
		}
		source = selector.NewElasticsearchSource(client, cfg.ElasticsearchIndex)
	default:
		if cfg.StaticDocumentsPath == "" {
			a.Logger.Warn("static selector has no documents, every search will find nothing")
			source = selector.NewStaticSource(nil)
			break
		}
		static, err := selector.LoadStaticSource(cfg.StaticDocumentsPath)
		if err != nil {
			return nil, err
		}
		source = static
	}

	opts := []selector.Option{selector.WithLogger(a.Logger)}
	if cfg.PromptTokenBudget > 0 {
		opts = append(opts, selector.WithTokenCounter(selector.NewTiktokenCounter(a.Logger)))
	}
	return selector.New(source, selector.Limits{
		ExcerptChars: cfg.ExcerptChars,
		BodyChars:    cfg.BodyChars,
		TokenBudget:  cfg.PromptTokenBudget,
	}, opts...), nil
}

// newChatClient returns the configured provider client, or nil when its API
// key is missing.
func newChatClient(cfg *config.Config) provider.ChatClient {
	if !cfg.HasProviderCredentials() {
		return nil
	}
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return provider.NewAnthropicClient(provider.AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			Timeout: cfg.ProviderTimeout,
		})
	default:
		return provider.NewOpenAIClient(provider.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.ProviderTimeout,
		})
	}
}

// generateTimeout bounds a whole provider call: every attempt plus the
// retry sleeps between them.
func generateTimeout(cfg *config.Config) time.Duration {
	attempts := time.Duration(provider.RetryPolicy{MaxRetries: cfg.MaxRetries}.Attempts())
	var sleeps time.Duration
	delay := cfg.RetryBaseDelay
	for i := 0; i < cfg.MaxRetries; i++ {
		sleeps += delay
		delay *= 2
	}
	return cfg.ProviderTimeout*attempts + sleeps
}

// StartWorkers runs the background workers until ctx is done or Close is
// called.
func (a *App) StartWorkers(ctx context.Context) {
	a.started = true
	for _, w := range a.workers {
		go w.Start(ctx)
	}
}

// Close stops the workers, flushes buffered events and releases
// connections.
func (a *App) Close() {
	if a.started {
		for _, w := range a.workers {
			w.Stop()
		}
	}

	if a.buffer != nil && a.buffer.Pending() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := a.buffer.Flush(ctx); err != nil {
			a.Logger.Warn("failed to flush search events on shutdown", "error", err, "pending", a.buffer.Pending())
		}
		cancel()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("error while closing", "error", err)
	}
}
