package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/riviantrackr/aisearch/internal/api/handlers"
	"github.com/riviantrackr/aisearch/internal/config"
	"github.com/riviantrackr/aisearch/internal/server"
	"github.com/riviantrackr/aisearch/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the summary server",
		Long:  "Start the aisearch HTTP server: /summary, /log-session-hit, /health, /metrics and, when an admin token is set, /admin",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides AISEARCH_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	logger := NewLogger(cfg)

	if cfg.HasSentry() {
		sampleRate := 0.2
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing", "error", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	app, err := buildApp(ctx, cfg, logger, buildOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer app.Close()

	app.StartWorkers(ctx)

	router := server.NewRouter(server.RouterConfig{
		SummaryHandler:    handlers.NewSummaryHandler(app.Summary),
		AdminHandler:      handlers.NewAdminHandler(app.Admin),
		MetricsHandler:    app.Metrics.Handler(),
		AdminToken:        cfg.AdminToken,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Logger:            logger,
	})
	if !cfg.HasAdminToken() {
		logger.Info("admin routes disabled, AISEARCH_ADMIN_TOKEN is not set")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "store", cfg.Store, "selector", cfg.Selector, "provider", cfg.Provider, "model", cfg.Model)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

// openApp loads the config and builds an App for the one-shot commands.
// These never migrate; serve owns the schema.
func openApp(cmd *cobra.Command) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return buildApp(cmd.Context(), cfg, NewLogger(cfg), buildOptions{})
}
