package handlers

import (
	"context"
	"net/http"

	"github.com/riviantrackr/aisearch/internal/api"
)

type AdminService interface {
	ClearCache(ctx context.Context) (int64, error)
	PurgeCache(ctx context.Context) (int, error)
	ListModels(ctx context.Context, refresh bool) ([]string, error)
}

type AdminHandler struct {
	svc AdminService
}

func NewAdminHandler(svc AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type ClearCacheResponse struct {
	Namespace int64 `json:"namespace"`
}

type PurgeCacheResponse struct {
	Deleted int `json:"deleted"`
}

type ModelsResponse struct {
	Models []string `json:"models"`
}

// ClearCache handles POST /admin/cache/clear.
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	version, err := h.svc.ClearCache(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ClearCacheResponse{Namespace: version})
}

// PurgeCache handles POST /admin/cache/purge.
func (h *AdminHandler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.svc.PurgeCache(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, PurgeCacheResponse{Deleted: deleted})
}

// ListModels handles GET /admin/models. refresh=1 bypasses the model cache.
func (h *AdminHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh")
	models, err := h.svc.ListModels(r.Context(), refresh == "1" || refresh == "true")
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if models == nil {
		models = []string{}
	}

	api.Success(w, http.StatusOK, ModelsResponse{Models: models})
}
