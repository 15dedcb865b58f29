package models

import "time"

// SearchStats summarizes one aggregation run. All fields are written after
// every adapter task has joined; nothing here is updated concurrently.
type SearchStats struct {
	RawCount          int            `json:"raw_count"`
	UniqueCount       int            `json:"unique_count"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	PerSourceCounts   map[string]int `json:"per_source_counts"`
	SucceededSources  int            `json:"succeeded_sources"`
	FailedSources     int            `json:"failed_sources"`
	ExecutionTimeMs   int64          `json:"execution_time_ms"`
}

// SearchResult is the aggregation pipeline's output: the deduplicated,
// price-sorted listings plus per-source errors. Immutable once returned.
type SearchResult struct {
	Listings  []Listing         `json:"listings"`
	Stats     SearchStats       `json:"stats"`
	Errors    map[string]string `json:"errors"`
	Timestamp time.Time         `json:"timestamp"`
}

// SearchResponse is the HTTP envelope around a SearchResult.
type SearchResponse struct {
	Success   bool          `json:"success"`
	Result    *SearchResult `json:"result,omitempty"`
	RequestID string        `json:"request_id"`
}

// SourcesResponse lists the adapters known to and enabled on this instance.
type SourcesResponse struct {
	Available []string `json:"available"`
	Enabled   []string `json:"enabled"`
}

// ErrorResponse is the standard error payload for API endpoints.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse is returned by the health check endpoints.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
