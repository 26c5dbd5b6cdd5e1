package domain

import "time"

// RequestRecord is one processed API request, kept for observability.
type RequestRecord struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Owner      string    `json:"owner"`
	Repo       string    `json:"repo"`
	Data       string    `json:"data"`
	CacheHit   bool      `json:"cache_hit"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}
