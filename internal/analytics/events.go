package analytics

import "time"

type EventType string

const (
	EventQuery      EventType = "query"
	EventZeroResult EventType = "zero_result"
	EventMalformed  EventType = "malformed_query"
)

// QueryEvent describes one evaluated query.
type QueryEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Postfix   string    `json:"postfix,omitempty"`
	Results   int       `json:"results"`
	LatencyUs int64     `json:"latency_us"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
