package health

import (
	"context"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/result"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexStatuser reports the embedding index summary.
type IndexStatuser interface {
	Status() result.IndexStatus
}
