package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a structurally unusable query or request parameter.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidEntity signals an entity notification that fails validation.
	ErrInvalidEntity = errors.New("invalid entity")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrModelVersionMismatch signals a vector produced by a model other than the active one.
	ErrModelVersionMismatch = errors.New("embedding model version mismatch")

	// ErrIndexUnavailable signals that no entity has a fresh embedding yet.
	// Reported through status; semantic search answers with an empty result instead.
	ErrIndexUnavailable = errors.New("semantic index unavailable")
	// ErrUpstreamTimeout signals that the embedding function exceeded its deadline.
	ErrUpstreamTimeout = errors.New("embedding upstream timeout")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrConsistencyViolation signals an index entry that references a deleted entity.
	ErrConsistencyViolation = errors.New("index consistency violation")
	// ErrOverloaded signals that the deferred embedding pool refused a job.
	ErrOverloaded = errors.New("embedding queue overloaded")
)

// IsRetryable reports whether a failure may succeed when the caller tries again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamTimeout) ||
		errors.Is(err, ErrEmbeddingProviderError) ||
		errors.Is(err, ErrOverloaded)
}

// IsReindexRequired reports whether a failure means stored vectors no longer fit the active model.
func IsReindexRequired(err error) bool {
	return errors.Is(err, ErrVectorDimMismatch) || errors.Is(err, ErrModelVersionMismatch)
}

// InvalidInputf formats an ErrInvalidInput with detail.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// DimensionError wraps ErrVectorDimMismatch with the observed sizes.
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrVectorDimMismatch.Error(), e.Expected, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrVectorDimMismatch }

// NewDimensionError creates a dimension mismatch error.
func NewDimensionError(expected, got int) error {
	return &DimensionError{Expected: expected, Got: got}
}
