// Package cache implements the summary cache: namespaced keys over a
// store.Store, TTL clamping and the legacy key index used by purge.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/riviantrackr/aisearch/internal/domain"
	"github.com/riviantrackr/aisearch/internal/store"
)

const (
	namespaceKey = "aisearch:cache:namespace"
	indexKey     = "aisearch:cache:index"

	// DefaultIndexLimit caps the number of keys remembered for purge.
	DefaultIndexLimit = 500
)

// Options configures a SummaryCache.
type Options struct {
	Model        string
	MaxDocuments int
	Policy       Policy
	IndexLimit   int
}

// SummaryCache stores SummaryResults under keys derived from the current
// namespace version. Bumping the namespace makes every older key
// unreachable without touching the entries themselves.
type SummaryCache struct {
	store  store.Store
	opts   Options
	logger *slog.Logger

	indexMu sync.Mutex
}

// New creates a SummaryCache over s.
func New(s store.Store, opts Options, logger *slog.Logger) *SummaryCache {
	if opts.IndexLimit <= 0 {
		opts.IndexLimit = DefaultIndexLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryCache{store: s, opts: opts, logger: logger}
}

// TTL returns the clamped TTL applied to new entries.
func (c *SummaryCache) TTL() time.Duration {
	return c.opts.Policy.EffectiveTTL()
}

// Namespace returns the current namespace version. The stored counter
// holds the number of bumps, so an untouched store is at version 1.
func (c *SummaryCache) Namespace(ctx context.Context) (int64, error) {
	bumps, err := c.store.Counter(ctx, namespaceKey)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache namespace: %w", err)
	}
	return bumps + 1, nil
}

// BumpNamespace invalidates every entry written so far and returns the new
// namespace version.
func (c *SummaryCache) BumpNamespace(ctx context.Context) (int64, error) {
	bumps, err := c.store.Increment(ctx, namespaceKey, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to bump cache namespace: %w", err)
	}
	c.logger.Info("cache namespace bumped", "namespace", bumps+1)
	return bumps + 1, nil
}

// Key returns the cache key for query under the current namespace.
func (c *SummaryCache) Key(ctx context.Context, query string) (string, error) {
	ns, err := c.Namespace(ctx)
	if err != nil {
		return "", err
	}
	return BuildKey(ns, c.opts.Model, c.opts.MaxDocuments, query)
}

// Get returns the cached result for key. Undecodable entries are dropped and
// reported as a miss.
func (c *SummaryCache) Get(ctx context.Context, key string) (*domain.SummaryResult, bool, error) {
	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	var result domain.SummaryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("dropping corrupt cache entry", "key", key, "error", err)
		_ = c.store.Delete(ctx, key)
		return nil, false, nil
	}

	normalized := result.Normalize()
	return &normalized, true, nil
}

// Set writes result under key with the policy TTL and records the key in
// the purge index.
func (c *SummaryCache) Set(ctx context.Context, key string, result domain.SummaryResult) error {
	payload, err := json.Marshal(result.Normalize())
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := c.store.Set(ctx, key, payload, c.TTL()); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	if err := c.trackKey(ctx, key); err != nil {
		c.logger.Warn("failed to update cache index", "key", key, "error", err)
	}
	return nil
}

// PurgeIndexed deletes every key recorded in the index, then clears the
// index. It returns the number of keys deleted.
func (c *SummaryCache) PurgeIndexed(ctx context.Context) (int, error) {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	keys, err := c.readIndex(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("failed to delete indexed cache key", "key", key, "error", err)
			continue
		}
		deleted++
	}

	if err := c.store.Delete(ctx, indexKey); err != nil {
		return deleted, fmt.Errorf("failed to clear cache index: %w", err)
	}

	c.logger.Info("cache index purged", "deleted", deleted)
	return deleted, nil
}

func (c *SummaryCache) trackKey(ctx context.Context, key string) error {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	keys, err := c.readIndex(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}

	keys = append(keys, key)
	if over := len(keys) - c.opts.IndexLimit; over > 0 {
		keys = keys[over:]
	}

	payload, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, indexKey, payload, 0)
}

func (c *SummaryCache) readIndex(ctx context.Context) ([]string, error) {
	raw, found, err := c.store.Get(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache index: %w", err)
	}
	if !found {
		return nil, nil
	}

	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		// A corrupt index only loses purge coverage.
		return nil, nil
	}
	return keys, nil
}
