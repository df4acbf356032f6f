package corpus

import "errors"

var (
	// ErrEmbedderUnavailable is returned by rebuilds when no embedder is configured.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")

	// ErrDimensionMismatch indicates the embedder returned vectors of differing sizes.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingCount indicates the embedder returned the wrong number of vectors.
	ErrEmbeddingCount = errors.New("embedding count mismatch")

	// ErrInvalidOption indicates an option was given an out-of-range value.
	ErrInvalidOption = errors.New("invalid corpus option")

	// ErrStoreClosed is returned after Close has been called.
	ErrStoreClosed = errors.New("corpus store is closed")
)
