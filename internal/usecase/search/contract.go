package search

import (
	"context"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/result"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/index/lexical"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/index/vector"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/textnorm"
)

// LexicalIndex answers keyword queries over indexed entity snapshots.
type LexicalIndex interface {
	Search(ctx context.Context, q textnorm.Query, pre lexical.Predicate) ([]lexical.Hit, error)
	Entities(ctx context.Context, pre lexical.Predicate) ([]entity.Entity, error)
}

// VectorIndex matches query vectors against stored embeddings.
type VectorIndex interface {
	MatchTopK(
		ctx context.Context, q []float32, candidates []vector.Candidate, k int, threshold float64,
	) ([]vector.Match, error)
	Status() result.IndexStatus
}

// Embedder vectorizes query text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
