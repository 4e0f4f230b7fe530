// Package hashembed is a deterministic feature-hashing embedder.
//
// Each normalized token is hashed into one signed dimension, so texts that
// share tokens share dimensions. It needs no network and is the default
// provider for local runs and tests.
package hashembed

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/textnorm"
)

// Embedder implements domain.Embedder and domain.HealthChecker.
type Embedder struct {
	dims int
}

var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// New creates an embedder producing vectors of size dims.
func New(dims int) *Embedder {
	return &Embedder{dims: dims}
}

// Dimensions returns the vector size.
func (e *Embedder) Dimensions() int { return e.dims }

// Embed returns the L2-normalized hashed token vector of text. Text without
// tokens yields the zero vector. PromptTokens counts normalized tokens.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	vec := make([]float32, e.dims)
	toks := textnorm.Normalize(text, "und")
	for _, tok := range toks {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		i := int(sum % uint64(e.dims))
		if sum&(1<<63) != 0 {
			vec[i]--
		} else {
			vec[i]++
		}
	}
	normalize(vec)
	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: len(toks),
		TotalTokens:  len(toks),
	}, nil
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
