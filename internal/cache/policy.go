package cache

import "time"

// Policy bounds the TTL used for cached summaries.
type Policy struct {
	DefaultTTL time.Duration
	MinTTL     time.Duration
	MaxTTL     time.Duration
}

// DefaultPolicy caches for an hour, clamped to [1 minute, 1 day].
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: time.Hour,
		MinTTL:     time.Minute,
		MaxTTL:     24 * time.Hour,
	}
}

// EffectiveTTL returns DefaultTTL clamped to [MinTTL, MaxTTL]. Zero bounds
// are ignored.
func (p Policy) EffectiveTTL() time.Duration {
	ttl := p.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultPolicy().DefaultTTL
	}
	if p.MinTTL > 0 && ttl < p.MinTTL {
		ttl = p.MinTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
