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

package docsift

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docsift/ai"
	"github.com/poiesic/docsift/ai/mock"
	"github.com/poiesic/docsift/config"
	"github.com/poiesic/docsift/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Corpus.Dir = t.TempDir()
	cfg.Storage.InMemory = true
	return cfg
}

func writeDoc(t *testing.T, dir, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
}

func TestNewEngine_NilConfig(t *testing.T) {
	engine, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrConfigRequired)
	assert.Nil(t, engine)
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.MaxResults = 0

	engine, err := NewEngine(cfg, WithProvider(mock.NewMockProvider()))
	assert.Error(t, err)
	assert.Nil(t, engine)
}

func TestEngine_LoadAndSearch(t *testing.T) {
	cfg := testConfig(t)
	writeDoc(t, cfg.Corpus.Dir, "greeting.txt", "Hello world, a friendly greeting.")
	writeDoc(t, cfg.Corpus.Dir, "pasta.txt", "Boil pasta in salted water.")

	m := metrics.New()
	engine, err := NewEngine(cfg, WithProvider(mock.NewMockProvider()), WithMetrics(m))
	require.NoError(t, err)
	defer engine.Close()

	assert.ErrorIs(t, engine.SearchAvailable(), ErrSearchUnavailable, "nothing embedded before Load")

	require.NoError(t, engine.Load(context.Background()))
	assert.NoError(t, engine.SearchAvailable())
	assert.Equal(t, 2, engine.Corpus().Len())
	assert.Same(t, m, engine.Metrics())
	assert.Same(t, cfg, engine.Config())

	require.NotNil(t, engine.Searcher())
	results := engine.Searcher().Rank(context.Background(), "hello world")
	require.NotEmpty(t, results)
	assert.Equal(t, "greeting.txt", results[0].Filename)
}

func TestEngine_UploadedDocumentIsSearchable(t *testing.T) {
	cfg := testConfig(t)
	engine, err := NewEngine(cfg, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer engine.Close()
	require.NoError(t, engine.Load(context.Background()))

	doc, err := engine.Corpus().Add(context.Background(), "notes.pdf", "quarterly revenue grew strongly")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Name)

	results := engine.Searcher().Rank(context.Background(), "quarterly revenue")
	require.Len(t, results, 1)
	assert.Equal(t, "notes.txt", results[0].Filename)
}

func TestEngine_ProviderFailure(t *testing.T) {
	cfg := testConfig(t)
	writeDoc(t, cfg.Corpus.Dir, "a.txt", "some text")
	cause := errors.New("no route to host")

	engine, err := NewEngine(cfg, WithProviderFactory(func(*ai.Config) (ai.AIProvider, error) {
		return nil, cause
	}))
	require.NoError(t, err)
	defer engine.Close()

	assert.Nil(t, engine.Searcher())
	assert.Error(t, engine.Load(context.Background()))

	// Documents stay browsable without embeddings.
	assert.Equal(t, []string{"a.txt"}, engine.Corpus().Names())

	err = engine.SearchAvailable()
	assert.ErrorIs(t, err, ErrSearchUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestEngine_EmbedFailureMakesSearchUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Corpus.MaxRetries = 1
	writeDoc(t, cfg.Corpus.Dir, "a.txt", "some text")

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("model not loaded")
	}
	provider := mock.NewMockProviderWithServices(embedder, nil)

	engine, err := NewEngine(cfg, WithProvider(provider))
	require.NoError(t, err)
	defer engine.Close()

	assert.Error(t, engine.Load(context.Background()))
	assert.ErrorIs(t, engine.SearchAvailable(), ErrSearchUnavailable)
	assert.Empty(t, engine.Searcher().Rank(context.Background(), "some text"))
}

func TestEngine_SessionsPersistInBackend(t *testing.T) {
	cfg := testConfig(t)
	engine, err := NewEngine(cfg, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	sess, err := engine.Sessions().Ensure(ctx, "")
	require.NoError(t, err)

	_, err = engine.Sessions().AddHistory(ctx, sess.ID, "budget")
	require.NoError(t, err)

	got, err := engine.Sessions().Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"budget"}, got.History)
}

func TestEngine_CloseTwice(t *testing.T) {
	engine, err := NewEngine(testConfig(t), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)

	assert.NoError(t, engine.Close())
	assert.NoError(t, engine.Close())
}
