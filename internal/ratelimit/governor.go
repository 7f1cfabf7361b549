// Package ratelimit implements fixed-window request counters over a
// store.Store.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/riviantrackr/aisearch/internal/store"
)

const (
	// Window is the length of one counting window.
	Window = time.Minute
	// DefaultGrace keeps a counter alive past the end of its window so a
	// request landing right at the boundary is still counted.
	DefaultGrace = 10 * time.Second

	// GlobalScope is the scope of the site-wide provider budget.
	GlobalScope = "global"

	keyPrefix = "aisearch:rl:"
)

// Status describes a limiter without changing it.
type Status struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Governor applies fixed-window limits to arbitrary scopes. Counts are best
// effort under concurrency: a burst may be over-counted but is never
// allowed past the limit on a store with atomic increments.
type Governor struct {
	store store.Store
	grace time.Duration
	now   func() time.Time
}

// Option configures a Governor.
type Option func(*Governor)

// WithGrace overrides DefaultGrace.
func WithGrace(d time.Duration) Option {
	return func(g *Governor) {
		if d >= 0 {
			g.grace = d
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// NewGovernor creates a Governor over s.
func NewGovernor(s store.Store, opts ...Option) *Governor {
	g := &Governor{store: s, grace: DefaultGrace, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IPScope returns the scope for a client address. Addresses are hashed so
// raw IPs never end up in the store.
func IPScope(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return "ip:" + hex.EncodeToString(sum[:8])
}

func windowStart(now time.Time) time.Time {
	return time.Unix(now.Unix()/int64(Window/time.Second)*int64(Window/time.Second), 0).UTC()
}

func counterKey(scope string, start time.Time) string {
	return fmt.Sprintf("%s%s:%d", keyPrefix, scope, start.Unix()/int64(Window/time.Second))
}

// Allow counts one request against scope and reports whether it fits in the
// current window. A limit <= 0 disables the limiter. A denied request is not
// counted.
func (g *Governor) Allow(ctx context.Context, scope string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	now := g.now()
	start := windowStart(now)
	key := counterKey(scope, start)

	count, err := g.store.Counter(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read rate counter: %w", err)
	}
	if count >= int64(limit) {
		return false, nil
	}

	ttl := start.Add(Window + g.grace).Sub(now)
	n, err := g.store.Increment(ctx, key, ttl)
	if err != nil {
		return false, fmt.Errorf("failed to increment rate counter: %w", err)
	}

	// Another request may have taken the last slot between the read and
	// the increment.
	return n <= int64(limit), nil
}

// Status reports the remaining budget for scope in the current window.
func (g *Governor) Status(ctx context.Context, scope string, limit int) (Status, error) {
	now := g.now()
	start := windowStart(now)
	status := Status{Limit: limit, ResetAt: start.Add(Window)}

	if limit <= 0 {
		return status, nil
	}

	count, err := g.store.Counter(ctx, counterKey(scope, start))
	if err != nil {
		return status, fmt.Errorf("failed to read rate counter: %w", err)
	}

	status.Remaining = limit - int(count)
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	return status, nil
}
