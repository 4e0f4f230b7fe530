package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage accumulates query embedding cost for one request.
// The caller installs it in the context, the search service records into it
// and the caller reads it back once the search returns. A nil receiver ignores updates.
type EmbeddingUsage struct {
	TotalTokens int
	Calls       int
	// Used is set by any embedding call, including cache hits that cost zero tokens.
	Used bool
}

// NewContextWithUsage returns ctx carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext returns the collector installed in ctx, or nil.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records one embedding call costing n tokens.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.TotalTokens += n
	u.Calls++
	u.Used = true
}
