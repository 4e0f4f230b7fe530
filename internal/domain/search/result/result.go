package result

import (
	"time"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
)

// Result is a single search hit. Scores are not comparable across modes.
type Result struct {
	id            string
	score         float64
	updatedAt     time.Time
	matchedFields []entity.Field
}

// New creates a search result.
func New(id string, score float64, updatedAt time.Time, matchedFields []entity.Field) Result {
	return Result{id: id, score: score, updatedAt: updatedAt, matchedFields: matchedFields}
}

// ID returns the entity identifier.
func (r *Result) ID() string { return r.id }

// Score returns the lexical rank or cosine similarity.
func (r *Result) Score() float64 { return r.score }

// UpdatedAt returns the entity modification time the hit was ranked with.
func (r *Result) UpdatedAt() time.Time { return r.updatedAt }

// MatchedFields returns the fields that contained a query term (keyword mode only).
func (r *Result) MatchedFields() []entity.Field { return r.matchedFields }

// Less orders a before b: score desc, then updated_at desc, then id asc.
func Less(a, b Result) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return NewerFirst(a, b)
}

// NewerFirst orders by updated_at desc, then id asc.
func NewerFirst(a, b Result) bool {
	if !a.updatedAt.Equal(b.updatedAt) {
		return a.updatedAt.After(b.updatedAt)
	}
	return a.id < b.id
}
