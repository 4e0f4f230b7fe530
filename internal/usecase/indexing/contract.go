package indexing

import (
	"context"
	"time"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/result"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/index/vector"
)

// LexicalIndex is the write side of the inverted index.
type LexicalIndex interface {
	Index(e entity.Entity)
	Remove(id string) bool
	Get(id string) (entity.Entity, bool)
}

// VectorIndex is the write side of the embedding store.
type VectorIndex interface {
	Track(id string, updatedAt time.Time)
	Forget(id string)
	Upsert(id string, vec []float32, modelVersion string) (vector.Record, error)
	Restore(rec vector.Record)
	IsFresh(id string, updatedAt time.Time) bool
	Pending() []string
	Status() result.IndexStatus
	ModelVersion() string
}

// Repository persists embedding records across restarts.
type Repository interface {
	Save(ctx context.Context, rec vector.Record) error
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]vector.Record, error)
	Prune(ctx context.Context, active string) (int, error)
}

// Embedder vectorizes entity text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
