package chi

import "time"

// ErrorResponseCode is a machine-readable error class.
type ErrorResponseCode string

// Error codes returned in ErrorResponse.Code.
const (
	ErrorResponseCodeBadRequest             ErrorResponseCode = "bad_request"
	ErrorResponseCodeValidationFailed       ErrorResponseCode = "validation_failed"
	ErrorResponseCodeInvalidEntity          ErrorResponseCode = "invalid_entity"
	ErrorResponseCodeUnauthorized           ErrorResponseCode = "unauthorized"
	ErrorResponseCodeNotFound               ErrorResponseCode = "not_found"
	ErrorResponseCodeUpstreamTimeout        ErrorResponseCode = "upstream_timeout"
	ErrorResponseCodeOverloaded             ErrorResponseCode = "overloaded"
	ErrorResponseCodeEmbeddingProviderError ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeReindexRequired        ErrorResponseCode = "reindex_required"
	ErrorResponseCodeUnavailable            ErrorResponseCode = "unavailable"
	ErrorResponseCodeInternalError          ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      ErrorResponseCode `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
}

// SearchResultItem is one ranked entity reference.
type SearchResultItem struct {
	ID            string    `json:"id"`
	Score         float64   `json:"score"`
	UpdatedAt     time.Time `json:"updated_at"`
	MatchedFields []string  `json:"matched_fields,omitempty"`
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Results []SearchResultItem        `json:"results"`
	Total   int                       `json:"total"`
	Facets  map[string]map[string]int `json:"facets"`
	Page    int                       `json:"page"`
	Limit   int                       `json:"limit"`
}

// SemanticSearchResponse is the body of GET /search/semantic.
type SemanticSearchResponse struct {
	Results []SearchResultItem `json:"results"`
	Total   int                `json:"total"`
}

// SemanticStatusResponse is the body of GET /search/semantic/status.
type SemanticStatusResponse struct {
	Available     bool   `json:"available"`
	TotalEntities int    `json:"total_entities"`
	EmbeddedCount int    `json:"embedded_count"`
	StaleCount    int    `json:"stale_count"`
	PendingCount  int    `json:"pending_count"`
	ModelVersion  string `json:"model_version"`
	Dimensions    int    `json:"dimensions"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// EntityRequest is the body of PUT /entities/{id}.
type EntityRequest struct {
	Type       string     `json:"type"`
	TitleEN    string     `json:"title_en"`
	TitleZH    string     `json:"title_zh"`
	BodyEN     string     `json:"body_en"`
	BodyZH     string     `json:"body_zh"`
	Tags       []string   `json:"tags"`
	Status     string     `json:"status"`
	Visibility string     `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// EntityResponse acknowledges an applied entity notification.
type EntityResponse struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReembedResponse is the body of POST /admin/reembed.
type ReembedResponse struct {
	Scheduled int `json:"scheduled"`
}
