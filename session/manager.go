// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/docsift/core"
	"github.com/poiesic/docsift/storage"
)

// DefaultHistorySize is the number of recent queries kept per session.
const DefaultHistorySize = 10

// Manager reads and updates sessions.
type Manager struct {
	repo        storage.SessionRepository
	historySize int
	logger      *slog.Logger

	// mu serializes read-modify-write cycles.
	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager) error

// WithHistorySize sets how many recent queries are kept.
func WithHistorySize(size int) Option {
	return func(m *Manager) error {
		if size < 1 {
			return ErrInvalidHistorySize
		}
		m.historySize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewManager creates a session manager on top of repo.
func NewManager(repo storage.SessionRepository, opts ...Option) (*Manager, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}

	m := &Manager{
		repo:        repo,
		historySize: DefaultHistorySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.logger = m.logger.With("component", "session")
	return m, nil
}

// Ensure returns the session identified by id, creating a new session
// with a fresh ID when id is empty, malformed, or unknown.
func (m *Manager) Ensure(ctx context.Context, id string) (*core.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := uuid.Parse(id); err == nil {
		sess, err := m.repo.GetSession(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}

	sess := &core.Session{ID: uuid.NewString()}
	if err := m.repo.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	m.logger.Debug("created session", "session", sess.ID)
	return sess, nil
}

// Get returns an existing session.
func (m *Manager) Get(ctx context.Context, id string) (*core.Session, error) {
	sess, err := m.repo.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, err
}

// AddHistory records query as the most recent search. An older identical
// entry is removed and the list is capped at the history size. Blank
// queries are ignored.
func (m *Manager) AddHistory(ctx context.Context, id, query string) (*core.Session, error) {
	query = strings.TrimSpace(query)
	return m.update(ctx, id, func(sess *core.Session) bool {
		if query == "" {
			return false
		}
		history := make([]string, 0, m.historySize)
		history = append(history, query)
		for _, q := range sess.History {
			if q != query && len(history) < m.historySize {
				history = append(history, q)
			}
		}
		sess.History = history
		return true
	})
}

// ClearHistory removes every recorded query.
func (m *Manager) ClearHistory(ctx context.Context, id string) (*core.Session, error) {
	return m.update(ctx, id, func(sess *core.Session) bool {
		if len(sess.History) == 0 {
			return false
		}
		sess.History = nil
		return true
	})
}

// ToggleFavorite adds filename to the favorites, or removes it if it is
// already there. It returns whether the file is a favorite afterwards.
func (m *Manager) ToggleFavorite(ctx context.Context, id, filename string) (bool, error) {
	name := core.SanitizeFilename(filename)
	if err := core.ValidateFilename(name); err != nil {
		return false, err
	}

	var favorite bool
	_, err := m.update(ctx, id, func(sess *core.Session) bool {
		if i := slices.Index(sess.Favorites, name); i >= 0 {
			sess.Favorites = slices.Delete(sess.Favorites, i, i+1)
			favorite = false
		} else {
			sess.Favorites = append(sess.Favorites, name)
			favorite = true
		}
		return true
	})
	if err != nil {
		return false, err
	}
	return favorite, nil
}

// update loads a session, applies fn and saves the result when fn
// reports a change.
func (m *Manager) update(ctx context.Context, id string, fn func(*core.Session) bool) (*core.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !fn(sess) {
		return sess, nil
	}
	if err := m.repo.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}
