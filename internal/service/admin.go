package service

import (
	"context"
	"log/slog"

	"github.com/riviantrackr/aisearch/internal/cache"
	"github.com/riviantrackr/aisearch/internal/domain"
)

// ModelLister lists the provider's models.
type ModelLister interface {
	ListModels(ctx context.Context, refresh bool) ([]string, error)
}

// AdminService implements the operator actions.
type AdminService struct {
	cache  *cache.SummaryCache
	models ModelLister
	logger *slog.Logger
}

// NewAdminService creates an AdminService. models may be nil when no
// provider is configured.
func NewAdminService(summaryCache *cache.SummaryCache, models ModelLister, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{cache: summaryCache, models: models, logger: logger}
}

// ClearCache invalidates every cached summary by bumping the namespace and
// returns the new version.
func (s *AdminService) ClearCache(ctx context.Context) (int64, error) {
	version, err := s.cache.BumpNamespace(ctx)
	if err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to clear cache", err)
	}
	s.logger.Info("summary cache cleared", "namespace", version)
	return version, nil
}

// PurgeCache deletes the entries recorded in the key index.
func (s *AdminService) PurgeCache(ctx context.Context) (int, error) {
	n, err := s.cache.PurgeIndexed(ctx)
	if err != nil {
		return n, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to purge cache", err)
	}
	s.logger.Info("summary cache purged", "deleted", n)
	return n, nil
}

// ListModels returns the provider's model list.
func (s *AdminService) ListModels(ctx context.Context, refresh bool) ([]string, error) {
	if s.models == nil {
		return nil, domain.ErrNotConfigured
	}
	return s.models.ListModels(ctx, refresh)
}
