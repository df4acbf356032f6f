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
	"fmt"
	"sync"
	"time"

	"github.com/poiesic/docsift/core"
)

// batch is a slice of unique texts embedded in a single call.
type batch struct {
	ids   []core.ID
	texts []string
}

// rebuild embeds docs and publishes them. Must be called with writeMu held.
// The previous snapshot is kept on any error.
func (s *Store) rebuild(ctx context.Context, docs []*core.Document) (err error) {
	stats := RebuildStats{Documents: len(docs)}
	start := time.Now()
	defer func() {
		stats.Elapsed = time.Since(start)
		if err != nil {
			s.logger.Error("rebuild failed", "documents", stats.Documents, "err", err)
		} else {
			s.logger.Info("rebuild complete",
				"documents", stats.Documents,
				"embedded", stats.Embedded,
				"cacheHits", stats.CacheHits,
				"elapsed", stats.Elapsed)
		}
		if s.observer != nil {
			s.observer.RebuildFinished(stats, err)
		}
	}()

	if s.embedder == nil {
		return ErrEmbedderUnavailable
	}

	if s.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.embedTimeout)
		defer cancel()
	}

	ids := make([]core.ID, len(docs))
	for i, d := range docs {
		ids[i] = d.ContentID()
	}

	vectors := s.cachedVectors(ctx, ids)
	stats.CacheHits = len(vectors)

	batches := s.pendingBatches(docs, ids, vectors)
	fresh, err := s.embedBatches(ctx, batches)
	if err != nil {
		return err
	}
	stats.Embedded = len(fresh)
	for id, v := range fresh {
		vectors[id] = v
	}

	next := make([]*core.Document, len(docs))
	dim := -1
	for i, d := range docs {
		v := vectors[ids[i]]
		if dim < 0 {
			dim = len(v)
		}
		if len(v) == 0 || len(v) != dim {
			return fmt.Errorf("%w: %s has %d dimensions, expected %d", ErrDimensionMismatch, d.Name, len(v), dim)
		}
		next[i] = &core.Document{Name: d.Name, Text: d.Text, Vector: v}
	}

	s.storeVectors(ctx, fresh, ids)
	s.publish(next, true)
	return nil
}

// cachedVectors returns the cached vectors for ids. Cache failures are
// logged and treated as misses.
func (s *Store) cachedVectors(ctx context.Context, ids []core.ID) map[core.ID][]float32 {
	if s.cache == nil || len(ids) == 0 {
		return make(map[core.ID][]float32)
	}
	found, err := s.cache.GetEmbeddings(ctx, s.model, ids...)
	if err != nil {
		s.logger.Warn("embedding cache lookup failed", "err", err)
		return make(map[core.ID][]float32)
	}
	return found
}

// storeVectors writes freshly embedded vectors to the cache and drops
// entries for content no longer in the corpus.
func (s *Store) storeVectors(ctx context.Context, fresh map[core.ID][]float32, keep []core.ID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.PutEmbeddings(ctx, s.model, fresh); err != nil {
		s.logger.Warn("failed to cache embeddings", "err", err)
		return
	}
	if removed, err := s.cache.PruneEmbeddings(ctx, s.model, keep); err != nil {
		s.logger.Warn("failed to prune embedding cache", "err", err)
	} else if removed > 0 {
		s.logger.Debug("pruned embedding cache", "removed", removed)
	}
}

// pendingBatches groups texts that have no vector yet into batches.
// Documents with identical content are embedded once.
func (s *Store) pendingBatches(docs []*core.Document, ids []core.ID, have map[core.ID][]float32) []batch {
	seen := make(map[core.ID]struct{})
	var batches []batch
	var current batch
	for i, d := range docs {
		id := ids[i]
		if _, ok := have[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		current.ids = append(current.ids, id)
		current.texts = append(current.texts, d.Text)
		if len(current.texts) == s.batchSize {
			batches = append(batches, current)
			current = batch{}
		}
	}
	if len(current.texts) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// embedBatches embeds every batch on the worker pool. It returns the
// first error encountered, after all submitted batches have finished.
func (s *Store) embedBatches(ctx context.Context, batches []batch) (map[core.ID][]float32, error) {
	results := make(map[core.ID][]float32)
	if len(batches) == 0 {
		return results, nil
	}

	total := 0
	for _, b := range batches {
		total += len(b.texts)
	}
	if s.progress != nil {
		s.progress.Start(total)
		defer s.progress.Finish()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for _, b := range batches {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			vectors, err := s.embedBatch(ctx, b)
			if err != nil {
				fail(err)
				return
			}
			mu.Lock()
			for i, id := range b.ids {
				results[id] = vectors[i]
			}
			mu.Unlock()
			if s.progress != nil {
				s.progress.Increment(len(b.texts))
			}
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("failed to schedule embedding batch: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (s *Store) embedBatch(ctx context.Context, b batch) ([][]float32, error) {
	var vectors [][]float32
	err := retryWithBackoff(ctx, s.logger, s.maxRetries, s.retryDelay, func() error {
		var err error
		vectors, err = s.embedder.EmbedTexts(ctx, b.texts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch after %d attempts: %w", s.maxRetries, err)
	}
	if len(vectors) != len(b.texts) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCount, len(b.texts), len(vectors))
	}
	return vectors, nil
}
