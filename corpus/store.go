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

package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docsift/ai"
	"github.com/poiesic/docsift/core"
	"github.com/poiesic/docsift/extract"
	"github.com/poiesic/docsift/storage"
)

const textExtension = ".txt"

// Observer is notified after every rebuild attempt.
type Observer interface {
	RebuildFinished(stats RebuildStats, err error)
}

// RebuildStats describes a single rebuild.
type RebuildStats struct {
	Documents int           // Documents in the rebuilt corpus
	Embedded  int           // Texts sent to the embedder
	CacheHits int           // Texts served from the embedding cache
	Elapsed   time.Duration // Wall-clock duration
}

// Store is the in-memory document collection.
// It is safe for concurrent use.
type Store struct {
	dir      string
	embedder ai.Embedder
	cache    storage.EmbeddingCache
	model    string
	pool     *ants.Pool
	observer Observer
	progress Progress
	logger   *slog.Logger

	batchSize    int
	poolSize     int
	maxRetries   int
	retryDelay   time.Duration
	embedTimeout time.Duration

	// writeMu serializes Load, Add and Rebuild.
	writeMu sync.Mutex

	mu     sync.RWMutex
	docs   []*core.Document
	ready  bool
	closed bool
}

// New creates a Store backed by dir. embedder may be nil, in which case
// documents are still loaded but every rebuild fails with
// ErrEmbedderUnavailable.
func New(dir string, embedder ai.Embedder, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrInvalidOption)
	}

	s := &Store{
		dir:          dir,
		embedder:     embedder,
		logger:       slog.Default(),
		batchSize:    DefaultBatchSize,
		poolSize:     DefaultPoolSize,
		maxRetries:   DefaultMaxRetries,
		retryDelay:   DefaultRetryDelay,
		embedTimeout: DefaultEmbedTimeout,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "corpus")

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, err
	}
	s.pool = pool

	return s, nil
}

// Close releases the worker pool. The Store must not be used afterwards.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.pool.Release()
	return nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads every .txt file in the storage directory and rebuilds the
// embeddings. Files that cannot be read, are not UTF-8, or are blank are
// logged and skipped. A missing directory is created empty.
//
// If the rebuild fails, the loaded documents are still published so they
// can be browsed, but Ready reports false and the error is returned.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return ErrStoreClosed
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create corpus directory: %w", err)
	}

	docs, err := s.readDir()
	if err != nil {
		return err
	}
	s.logger.Info("loaded documents", "dir", s.dir, "count", len(docs))

	if err := s.rebuild(ctx, docs); err != nil {
		s.publish(docs, false)
		return err
	}
	return nil
}

// readDir reads every .txt file in the directory. Files whose names are
// not already sanitized are registered under their sanitized name so
// lookups and uploads resolve to them; when both spellings exist the
// exact name wins.
func (s *Store) readDir() ([]*core.Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus directory: %w", err)
	}

	docs := make([]*core.Document, 0, len(entries))
	byName := make(map[string]int, len(entries))
	aliased := make(map[string]bool)
	for _, entry := range entries {
		file := entry.Name()
		if !isTextFile(entry) {
			continue
		}
		name := core.SanitizeFilename(file)
		if err := core.ValidateFilename(name); err != nil {
			s.logger.Warn("skipping document", "file", file, "err", err)
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, file))
		if err != nil {
			s.logger.Warn("skipping unreadable document", "file", file, "err", err)
			continue
		}
		text, err := extract.DecodeText(data)
		if err != nil {
			s.logger.Warn("skipping undecodable document", "file", file, "err", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			s.logger.Warn("skipping empty document", "file", file)
			continue
		}

		doc := &core.Document{Name: name, Text: text}
		if i, ok := byName[name]; ok {
			if aliased[name] && file == name {
				docs[i] = doc
				aliased[name] = false
				continue
			}
			s.logger.Warn("skipping document with duplicate sanitized name", "file", file, "name", name)
			continue
		}
		if file != name {
			s.logger.Debug("registering document under sanitized name", "file", file, "name", name)
			aliased[name] = true
		}
		byName[name] = len(docs)
		docs = append(docs, doc)
	}
	return docs, nil
}

func isTextFile(entry fs.DirEntry) bool {
	if entry.IsDir() {
		return false
	}
	return strings.EqualFold(filepath.Ext(entry.Name()), textExtension)
}

// DocumentName sanitizes a user-supplied filename and forces the .txt
// extension under which the document is stored.
func DocumentName(filename string) (string, error) {
	name := core.SanitizeFilename(filename)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if err := core.ValidateFilename(stem); err != nil {
		return "", err
	}
	return stem + textExtension, nil
}

// Add stores text under the sanitized filename, replacing any document of
// the same name, and synchronously rebuilds the embeddings.
// On failure the corpus and the storage directory are left unchanged.
func (s *Store) Add(ctx context.Context, filename, text string) (*core.Document, error) {
	name, err := DocumentName(filename)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, core.ErrEmptyContent
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	doc := &core.Document{Name: name, Text: text}
	next := s.withDocument(doc)

	restore, err := s.writeFile(name, text)
	if err != nil {
		return nil, err
	}

	if err := s.rebuild(ctx, next); err != nil {
		if rerr := restore(); rerr != nil {
			s.logger.Error("failed to restore document file", "file", name, "err", rerr)
		}
		return nil, err
	}

	added, _ := s.Get(name)
	s.logger.Info("added document", "file", name, "documents", len(next))
	return added, nil
}

// withDocument returns the current documents with doc appended, or
// substituted for an existing document of the same name.
func (s *Store) withDocument(doc *core.Document) []*core.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := make([]*core.Document, 0, len(s.docs)+1)
	replaced := false
	for _, d := range s.docs {
		if d.Name == doc.Name {
			next = append(next, doc)
			replaced = true
			continue
		}
		next = append(next, d)
	}
	if !replaced {
		next = append(next, doc)
	}
	return next
}

// writeFile writes text into the storage directory and returns a function
// that undoes the write.
func (s *Store) writeFile(name, text string) (func() error, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory: %w", err)
	}

	path := filepath.Join(s.dir, name)
	previous, err := os.ReadFile(path)
	existed := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", name, err)
	}

	return func() error {
		if existed {
			return os.WriteFile(path, previous, 0644)
		}
		return os.Remove(path)
	}, nil
}

// Rebuild re-embeds every document currently in the corpus.
func (s *Store) Rebuild(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return ErrStoreClosed
	}

	s.mu.RLock()
	docs := slices.Clone(s.docs)
	s.mu.RUnlock()

	return s.rebuild(ctx, docs)
}

// Snapshot returns the published documents in corpus order.
// The documents are shared and must not be modified.
func (s *Store) Snapshot() []*core.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.docs)
}

// Get returns a copy of the named document. The name is sanitized before
// lookup.
func (s *Store) Get(name string) (*core.Document, error) {
	name = core.SanitizeFilename(name)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.docs {
		if d.Name == name {
			return d.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", core.ErrDocumentNotFound, name)
}

// Names returns the document names in corpus order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.docs))
	for i, d := range s.docs {
		names[i] = d.Name
	}
	return names
}

// Len returns the number of published documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Ready reports whether the published documents carry embeddings from a
// successful rebuild.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Store) publish(docs []*core.Document, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = docs
	s.ready = ready
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
