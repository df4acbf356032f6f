package storage

import (
	"context"

	"github.com/poiesic/docsift/core"
)

// EmbeddingCache persists document vectors keyed by embedding model and
// content ID so unchanged texts are not re-embedded on every rebuild.
// Implementations must be thread-safe and support concurrent access.
type EmbeddingCache interface {
	// GetEmbeddings returns the cached vectors for the given content IDs.
	// Missing IDs are simply absent from the returned map.
	GetEmbeddings(ctx context.Context, model string, ids ...core.ID) (map[core.ID][]float32, error)

	// PutEmbeddings stores vectors for the given model, overwriting existing entries.
	PutEmbeddings(ctx context.Context, model string, vectors map[core.ID][]float32) error

	// PruneEmbeddings removes every cached vector for model whose ID is not in keep.
	// Returns the number of removed entries.
	PruneEmbeddings(ctx context.Context, model string, keep []core.ID) (int, error)

	// Close releases resources held by the cache.
	Close() error
}

// SessionRepository persists per-visitor session state.
// Implementations must be thread-safe and support concurrent access.
type SessionRepository interface {
	// GetSession retrieves a session by ID.
	// Returns ErrNotFound if the session doesn't exist.
	GetSession(ctx context.Context, id string) (*core.Session, error)

	// SaveSession creates or replaces a session.
	// Sets UpdatedAt to the current time.
	SaveSession(ctx context.Context, session *core.Session) error

	// DeleteSession removes a session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, id string) error

	// Close releases resources held by the repository.
	Close() error
}
