package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/riviantrackr/aisearch/internal/api"
	"github.com/riviantrackr/aisearch/internal/api/handlers"
	"github.com/riviantrackr/aisearch/internal/api/middleware"
)

type RouterConfig struct {
	SummaryHandler *handlers.SummaryHandler
	AdminHandler   *handlers.AdminHandler
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// AdminToken enables the /admin routes. Without it they are not mounted.
	AdminToken        string
	TrustProxyHeaders bool
	Logger            *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP(cfg.TrustProxyHeaders))
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Get("/summary", cfg.SummaryHandler.Summary)
	r.Post("/log-session-hit", cfg.SummaryHandler.LogSessionHit)

	if cfg.AdminToken != "" && cfg.AdminHandler != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.AdminToken))

			r.Post("/cache/clear", cfg.AdminHandler.ClearCache)
			r.Post("/cache/purge", cfg.AdminHandler.PurgeCache)
			r.Get("/models", cfg.AdminHandler.ListModels)
		})
	}

	return r
}
