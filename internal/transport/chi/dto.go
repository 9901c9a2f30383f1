package chi

import (
	"github.com/kailas-cloud/nearby/internal/domain/geo"
)

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeNotFound         ErrorCode = "not_found"
	ErrorCodeConflict         ErrorCode = "conflict"
	ErrorCodeNotIndexed       ErrorCode = "provider_not_indexed"
	ErrorCodeUnavailable      ErrorCode = "index_unavailable"
	ErrorCodeNotImplemented   ErrorCode = "not_implemented"
	ErrorCodeInternal         ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ProviderItem is one search hit.
type ProviderItem struct {
	ID            string    `json:"id"`
	ProviderID    string    `json:"provider_id"`
	Name          string    `json:"name"`
	Location      geo.Point `json:"location"`
	City          string    `json:"city,omitempty"`
	State         string    `json:"state,omitempty"`
	Tier          string    `json:"tier"`
	AverageRating float64   `json:"average_rating"`
	TotalReviews  int       `json:"total_reviews"`
	ServiceIDs    []string  `json:"service_ids"`
	DistanceKm    float64   `json:"distance_km"`
}

// SearchResponse is the body of GET /v1/providers/search.
// TotalCount is -1 when CountAvailable is false.
type SearchResponse struct {
	Items          []ProviderItem `json:"items"`
	TotalCount     int            `json:"total_count"`
	CountAvailable bool           `json:"count_available"`
	Skip           int            `json:"skip"`
	Take           int            `json:"take"`
}

// EventResult reports the outcome of one submitted event.
type EventResult struct {
	Index      int            `json:"index"`
	ProviderID string         `json:"provider_id,omitempty"`
	Sequence   int64          `json:"sequence,omitempty"`
	Status     string         `json:"status"`
	Retryable  bool           `json:"retryable,omitempty"`
	Error      *ErrorResponse `json:"error,omitempty"`
}

// EventsResponse is the body of POST /v1/events.
type EventsResponse struct {
	Items     []EventResult `json:"items"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
