package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/metrics"
)

// InstrumentedEmbedder bounds every call by a timeout, validates the returned
// vector and logs outcomes. Transport metrics are recorded by the provider.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	dims     int
	timeout  time.Duration
	logger   *zap.Logger
}

// Options configure an InstrumentedEmbedder.
type Options struct {
	Provider string
	Model    string
	// Dimensions is the required vector size. Zero disables the check.
	Dimensions int
	// Timeout bounds one call. Zero means no bound beyond the caller's context.
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewInstrumentedEmbedder wraps inner.
func NewInstrumentedEmbedder(inner domain.Embedder, opts Options) *InstrumentedEmbedder {
	l := opts.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: opts.Provider,
		model:    opts.Model,
		dims:     opts.Dimensions,
		timeout:  opts.Timeout,
		logger:   l,
	}
}

// Embed delegates to the inner embedder.
//
// A call that outlives the timeout while ctx itself is still live fails with
// domain.ErrUpstreamTimeout. Cancellation of ctx is returned as is. A vector of
// the wrong size fails with a *domain.DimensionError, and one holding NaN or Inf
// with domain.ErrEmbeddingProviderError.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := p.inner.Embed(callCtx, text)
	duration := time.Since(start)

	if err != nil {
		err = p.classify(ctx, callCtx, err)
		p.logger.Warn("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, err
	}
	// a provider that ignores ctx may answer after the deadline
	if callCtx.Err() != nil && ctx.Err() == nil {
		p.countError("timeout")
		return domain.EmbeddingResult{}, fmt.Errorf("embed after %s: %w", duration, domain.ErrUpstreamTimeout)
	}

	if p.dims > 0 && len(result.Embedding) != p.dims {
		p.countError("dimension_mismatch")
		return domain.EmbeddingResult{}, domain.NewDimensionError(p.dims, len(result.Embedding))
	}
	for _, x := range result.Embedding {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			p.countError("non_finite")
			return domain.EmbeddingResult{}, fmt.Errorf("non-finite vector component: %w", domain.ErrEmbeddingProviderError)
		}
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

func (p *InstrumentedEmbedder) classify(parent, call context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return err
	case parent.Err() != nil:
		return fmt.Errorf("embed: %w", parent.Err())
	case errors.Is(call.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		p.countError("timeout")
		return fmt.Errorf("embed: %w: %w", domain.ErrUpstreamTimeout, err)
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return err
	default:
		return fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
}

func (p *InstrumentedEmbedder) countError(kind string) {
	metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, kind).Inc()
}
