package badger

import (
	"context"
	"testing"

	"github.com/poiesic/docsift/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCache_PutAndGet(t *testing.T) {
	cache, sessions, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		cache.Close()
		sessions.Close()
		backend.Close()
	}()

	ctx := context.Background()
	vectors := map[core.ID][]float32{
		1: {0.1, 0.2, 0.3},
		2: {0.4, 0.5, 0.6},
	}
	require.NoError(t, cache.PutEmbeddings(ctx, "m1", vectors))

	found, err := cache.GetEmbeddings(ctx, "m1", 1, 2, 3)
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, vectors[1], found[1])
	assert.Equal(t, vectors[2], found[2])
	assert.NotContains(t, found, core.ID(3))
}

func TestEmbeddingCache_ModelsAreIsolated(t *testing.T) {
	cache, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, cache.PutEmbeddings(ctx, "m1", map[core.ID][]float32{7: {1, 0}}))

	found, err := cache.GetEmbeddings(ctx, "m2", 7)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestEmbeddingCache_PutEmpty(t *testing.T) {
	cache, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	assert.NoError(t, cache.PutEmbeddings(context.Background(), "m1", nil))
}

func TestEmbeddingCache_Prune(t *testing.T) {
	cache, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, cache.PutEmbeddings(ctx, "m1", map[core.ID][]float32{
		1: {1}, 2: {2}, 3: {3},
	}))
	require.NoError(t, cache.PutEmbeddings(ctx, "m2", map[core.ID][]float32{
		1: {1},
	}))

	removed, err := cache.PruneEmbeddings(ctx, "m1", []core.ID{2})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	found, err := cache.GetEmbeddings(ctx, "m1", 1, 2, 3)
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Contains(t, found, core.ID(2))

	other, err := cache.GetEmbeddings(ctx, "m2", 1)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestEmbeddingCache_PruneNothing(t *testing.T) {
	cache, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	removed, err := cache.PruneEmbeddings(context.Background(), "m1", nil)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
