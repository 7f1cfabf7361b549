// Package store provides the key/value backends behind the summary cache,
// the cache namespace counter and the rate-limit windows.
package store

import (
	"context"
	"time"
)

// Store is a key/value store with per-key TTL and atomic counters.
//
// A ttl <= 0 means the entry never expires. Expired entries behave as absent;
// backends are free to remove them lazily.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Increment atomically adds one to the counter at key and returns the new
	// value. A missing or expired counter restarts at 1 with the given ttl;
	// the ttl of a live counter is left untouched.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Counter returns the current counter value, or 0 if it is missing or
	// expired. It never mutates state.
	Counter(ctx context.Context, key string) (int64, error)
}

// Sweeper is implemented by stores that keep expired rows around until they
// are explicitly removed.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// expiresAt converts a ttl into an absolute deadline. The zero time means
// no expiry.
func expiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func expired(deadline, now time.Time) bool {
	return !deadline.IsZero() && !now.Before(deadline)
}
