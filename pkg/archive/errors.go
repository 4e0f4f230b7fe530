package archive

import (
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	indexinguc "github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/indexing"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrInvalidEntity          = domain.ErrInvalidEntity
	ErrUpstreamTimeout        = domain.ErrUpstreamTimeout
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrModelVersionMismatch   = domain.ErrModelVersionMismatch
	ErrOverloaded             = domain.ErrOverloaded
	ErrClosed                 = indexinguc.ErrClosed
)

// IsRetryable reports whether the operation may succeed if tried again.
func IsRetryable(err error) bool { return domain.IsRetryable(err) }
