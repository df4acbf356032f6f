package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/docsift/core"
	"github.com/poiesic/docsift/storage"
	"github.com/poiesic/docsift/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, storage.SessionRepository) {
	t.Helper()
	cache, sessions, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		cache.Close()
		sessions.Close()
		backend.Close()
	})

	m, err := NewManager(sessions, opts...)
	require.NoError(t, err)
	return m, sessions
}

func TestNewManager(t *testing.T) {
	_, err := NewManager(nil)
	assert.Equal(t, ErrRepositoryRequired, err)

	_, sessions, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewManager(sessions, WithHistorySize(0))
	assert.ErrorIs(t, err, ErrInvalidHistorySize)

	m, err := NewManager(sessions, WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultHistorySize, m.historySize)
}

func TestEnsure(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	t.Run("empty id creates a session", func(t *testing.T) {
		sess, err := m.Ensure(ctx, "")
		require.NoError(t, err)
		_, err = uuid.Parse(sess.ID)
		assert.NoError(t, err)
	})

	t.Run("existing id is returned", func(t *testing.T) {
		first, err := m.Ensure(ctx, "")
		require.NoError(t, err)
		again, err := m.Ensure(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	})

	t.Run("malformed id is replaced", func(t *testing.T) {
		sess, err := m.Ensure(ctx, "../../not-a-uuid")
		require.NoError(t, err)
		assert.NotEqual(t, "../../not-a-uuid", sess.ID)
	})

	t.Run("unknown id is replaced", func(t *testing.T) {
		unknown := uuid.NewString()
		sess, err := m.Ensure(ctx, unknown)
		require.NoError(t, err)
		assert.NotEqual(t, unknown, sess.ID)
	})
}

func TestGet_Unknown(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAddHistory(t *testing.T) {
	m, _ := newTestManager(t, WithHistorySize(3))
	ctx := context.Background()
	sess, err := m.Ensure(ctx, "")
	require.NoError(t, err)

	for _, q := range []string{"cats", "dogs", "  ", "birds", "cats", "fish"} {
		_, err := m.AddHistory(ctx, sess.ID, q)
		require.NoError(t, err)
	}

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"fish", "cats", "birds"}, got.History)
}

func TestAddHistory_Cap(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	sess, err := m.Ensure(ctx, "")
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		sess, err = m.AddHistory(ctx, sess.ID, fmt.Sprintf("query %d", i))
		require.NoError(t, err)
	}
	require.Len(t, sess.History, DefaultHistorySize)
	assert.Equal(t, "query 24", sess.History[0])
	assert.Equal(t, "query 15", sess.History[DefaultHistorySize-1])
}

func TestAddHistory_UnknownSession(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.AddHistory(context.Background(), uuid.NewString(), "query")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClearHistory(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	sess, err := m.Ensure(ctx, "")
	require.NoError(t, err)

	_, err = m.AddHistory(ctx, sess.ID, "cats")
	require.NoError(t, err)
	cleared, err := m.ClearHistory(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, cleared.History)

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.History)
}

func TestToggleFavorite(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	sess, err := m.Ensure(ctx, "")
	require.NoError(t, err)

	on, err := m.ToggleFavorite(ctx, sess.ID, "notes.txt")
	require.NoError(t, err)
	assert.True(t, on)

	_, err = m.ToggleFavorite(ctx, sess.ID, "other.txt")
	require.NoError(t, err)

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt", "other.txt"}, got.Favorites)
	assert.True(t, got.IsFavorite("notes.txt"))

	off, err := m.ToggleFavorite(ctx, sess.ID, "notes.txt")
	require.NoError(t, err)
	assert.False(t, off)

	got, err = m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"other.txt"}, got.Favorites)
}

func TestToggleFavorite_SanitizesName(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	sess, err := m.Ensure(ctx, "")
	require.NoError(t, err)

	_, err = m.ToggleFavorite(ctx, sess.ID, "../secret.txt")
	require.NoError(t, err)
	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"secret.txt"}, got.Favorites)

	_, err = m.ToggleFavorite(ctx, sess.ID, "../")
	assert.ErrorIs(t, err, core.ErrInvalidFilename)
}

func TestPersistenceAcrossManagers(t *testing.T) {
	m, repo := newTestManager(t)
	ctx := context.Background()
	sess, err := m.Ensure(ctx, "")
	require.NoError(t, err)
	_, err = m.AddHistory(ctx, sess.ID, "persisted")
	require.NoError(t, err)

	other, err := NewManager(repo)
	require.NoError(t, err)
	got, err := other.Ensure(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"persisted"}, got.History)
}
