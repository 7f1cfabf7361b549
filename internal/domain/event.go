package domain

import "time"

// EventSource tells where a SearchEvent originated.
type EventSource string

const (
	// EventSourceServer marks events produced by the summary pipeline.
	EventSourceServer EventSource = "server"
	// EventSourceSession marks cache hits reported by the browser session.
	EventSourceSession EventSource = "session"
)

// SearchEvent is an append-only record of one summary request outcome.
// CacheHit is nil when the request never reached the cache lookup.
type SearchEvent struct {
	Query        string      `json:"query"`
	ResultsCount int         `json:"results_count"`
	AISuccess    bool        `json:"ai_success"`
	AIError      string      `json:"ai_error,omitempty"`
	ErrorCode    string      `json:"error_code,omitempty"`
	CacheHit     *bool       `json:"cache_hit"`
	Source       EventSource `json:"source"`
	Timestamp    time.Time   `json:"timestamp"`
}

// CacheHit returns a pointer to b for use in SearchEvent.
func CacheHit(b bool) *bool {
	return &b
}
