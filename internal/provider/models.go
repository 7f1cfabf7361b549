package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/riviantrackr/aisearch/internal/store"
)

// ModelsCacheTTL is how long a fetched model list is reused.
const ModelsCacheTTL = 7 * 24 * time.Hour

// ModelCatalog lists provider models, caching the result in a store.
type ModelCatalog struct {
	client ChatClient
	store  store.Store
	logger *slog.Logger
}

// NewModelCatalog creates a ModelCatalog.
func NewModelCatalog(client ChatClient, s store.Store, logger *slog.Logger) *ModelCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelCatalog{client: client, store: s, logger: logger}
}

func (c *ModelCatalog) cacheKey() string {
	return "aisearch:models:" + c.client.Name()
}

// ListModels returns the cached model list, fetching it when missing or
// when refresh is set.
func (c *ModelCatalog) ListModels(ctx context.Context, refresh bool) ([]string, error) {
	if !refresh {
		raw, found, err := c.store.Get(ctx, c.cacheKey())
		if err != nil {
			c.logger.Warn("failed to read models cache", "error", err)
		}
		if found {
			var ids []string
			if err := json.Unmarshal(raw, &ids); err == nil {
				return ids, nil
			}
		}
	}

	ids, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, ToDomainError(err)
	}
	if ids == nil {
		ids = []string{}
	}

	payload, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode model list: %w", err)
	}
	if err := c.store.Set(ctx, c.cacheKey(), payload, ModelsCacheTTL); err != nil {
		c.logger.Warn("failed to write models cache", "error", err)
	}
	return ids, nil
}
