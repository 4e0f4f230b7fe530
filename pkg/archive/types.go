package archive

import (
	"context"
	"time"
)

// Embedder converts text to a vector embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Entity is a searchable archive record.
// Empty Visibility means private. A zero UpdatedAt means CreatedAt.
type Entity struct {
	ID         string
	Type       string
	TitleEN    string
	TitleZH    string
	BodyEN     string
	BodyZH     string
	Tags       []string
	Status     string
	Visibility string // "public" or "private"
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Query holds search input. Zero values take the defaults.
type Query struct {
	Text       string
	Type       string
	Status     string
	Visibility []string
	Tags       []string // all must be present
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	Limit      int
	Sort       string // "relevance" or "date" (keyword only)
	Threshold  *float64
}

// Result is a single search hit. Scores are not comparable across modes.
type Result struct {
	ID            string    `json:"id"`
	Score         float64   `json:"score"`
	UpdatedAt     time.Time `json:"updated_at"`
	MatchedFields []string  `json:"matched_fields,omitempty"`
}

// Page is a keyword search response.
type Page struct {
	Results []Result                  `json:"results"`
	Total   int                       `json:"total"`
	Facets  map[string]map[string]int `json:"facets"`
	Page    int                       `json:"page"`
	Limit   int                       `json:"limit"`
}

// SemanticPage is a semantic search response.
type SemanticPage struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	// EmbeddingTokens is the number of tokens the query embedding consumed.
	EmbeddingTokens int `json:"embedding_tokens"`
}

// Status summarizes the semantic index.
type Status struct {
	Available     bool   `json:"available"`
	TotalEntities int    `json:"total_entities"`
	EmbeddedCount int    `json:"embedded_count"`
	StaleCount    int    `json:"stale_count"`
	PendingCount  int    `json:"pending_count"`
	ModelVersion  string `json:"model_version"`
	Dimensions    int    `json:"dimensions"`
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded"
	Checks map[string]string `json:"checks"` // component -> "ok"/"error"/"unavailable"
}
