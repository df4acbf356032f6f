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
	"fmt"
	"log/slog"

	"github.com/poiesic/docsift/ai"
	"github.com/poiesic/docsift/ai/openai"
	"github.com/poiesic/docsift/config"
	"github.com/poiesic/docsift/corpus"
	"github.com/poiesic/docsift/metrics"
	"github.com/poiesic/docsift/search"
	"github.com/poiesic/docsift/session"
	"github.com/poiesic/docsift/storage"
	"github.com/poiesic/docsift/storage/badger"
)

// ProviderFactory creates the AI provider from its configuration.
type ProviderFactory func(*ai.Config) (ai.AIProvider, error)

// Engine is the application facade. It owns the BadgerDB backend holding
// the embedding cache and sessions, the AI provider, the corpus store, the
// searcher and the session manager, and closes them in reverse order.
//
// Searcher returns nil when the provider could not be created; the corpus
// and sessions keep working and SearchAvailable reports the cause.
type Engine struct {
	config      *config.Config
	backend     *badger.Backend
	cache       storage.EmbeddingCache
	sessionRepo storage.SessionRepository
	provider    ai.AIProvider
	providerErr error
	corpus      *corpus.Store
	searcher    *search.Searcher
	sessions    *session.Manager
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	providerFactory ProviderFactory
	metrics         *metrics.Metrics
	progress        corpus.Progress
	monitor         search.SearchMonitor
	logger          *slog.Logger
}

// WithProviderFactory replaces the OpenAI-compatible provider.
func WithProviderFactory(factory ProviderFactory) EngineOption {
	return func(o *engineOptions) {
		o.providerFactory = factory
	}
}

// WithProvider uses an already constructed provider.
func WithProvider(provider ai.AIProvider) EngineOption {
	return WithProviderFactory(func(*ai.Config) (ai.AIProvider, error) {
		return provider, nil
	})
}

// WithMetrics records rebuilds through m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(o *engineOptions) {
		o.metrics = m
	}
}

// WithProgress reports corpus embedding progress.
func WithProgress(p corpus.Progress) EngineOption {
	return func(o *engineOptions) {
		o.progress = p
	}
}

// WithSearchMonitor observes every ranked query.
func WithSearchMonitor(m search.SearchMonitor) EngineOption {
	return func(o *engineOptions) {
		o.monitor = m
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine opens storage and builds every component described by cfg.
//
// A provider that fails to initialize does not fail the engine: the
// corpus and sessions still work, and SearchAvailable reports the cause.
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &engineOptions{
		providerFactory: openai.NewProvider,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	e := &Engine{
		config:  cfg,
		metrics: options.metrics,
		logger:  options.logger.With("component", "engine"),
	}

	backend, err := badger.OpenBackend(cfg.Storage.Dir, cfg.Storage.InMemory)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	e.backend = backend
	e.sessionRepo = badger.NewSessionRepository(backend, cfg.Session.TTL)
	if cfg.Storage.CacheEmbeddings {
		e.cache = badger.NewEmbeddingCache(backend)
	}

	e.provider, e.providerErr = options.providerFactory(cfg.AIConfig())
	if e.providerErr == nil && e.provider == nil {
		e.providerErr = errors.New("provider factory returned no provider")
	}
	if e.providerErr != nil {
		e.provider = nil
		e.logger.Error("embedding provider unavailable, search disabled", "err", e.providerErr)
	}

	if err := e.buildComponents(options); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) buildComponents(options *engineOptions) error {
	cfg := e.config

	corpusOpts := []corpus.Option{
		corpus.WithBatchSize(cfg.Corpus.BatchSize),
		corpus.WithPoolSize(cfg.Corpus.PoolSize),
		corpus.WithMaxRetries(cfg.Corpus.MaxRetries),
		corpus.WithRetryDelay(cfg.Corpus.RetryDelay),
		corpus.WithEmbedTimeout(cfg.Corpus.EmbedTimeout),
		corpus.WithLogger(options.logger),
	}
	if options.metrics != nil {
		corpusOpts = append(corpusOpts, corpus.WithObserver(options.metrics))
	}
	if options.progress != nil {
		corpusOpts = append(corpusOpts, corpus.WithProgress(options.progress))
	}

	var embedder ai.Embedder
	if e.provider != nil {
		embedder = e.provider.Embedder()
		if e.cache != nil {
			corpusOpts = append(corpusOpts, corpus.WithCache(e.cache, e.provider.EmbeddingModel()))
		}
	}

	store, err := corpus.New(cfg.Corpus.Dir, embedder, corpusOpts...)
	if err != nil {
		return err
	}
	e.corpus = store

	if e.provider != nil {
		searcher, err := search.NewSearcher(store, embedder,
			search.WithThreshold(cfg.Search.Threshold),
			search.WithMaxResults(cfg.Search.MaxResults),
			search.WithSnippetLength(cfg.Search.SnippetLength),
			search.WithAnswerer(e.provider.Answerer()),
			search.WithMonitor(options.monitor),
			search.WithLogger(options.logger),
		)
		if err != nil {
			return err
		}
		e.searcher = searcher
	}

	sessions, err := session.NewManager(e.sessionRepo,
		session.WithHistorySize(cfg.Session.HistorySize),
		session.WithLogger(options.logger),
	)
	if err != nil {
		return err
	}
	e.sessions = sessions
	return nil
}

// Load reads the document directory and embeds the corpus. A returned
// error leaves documents browsable but search unavailable.
func (e *Engine) Load(ctx context.Context) error {
	err := e.corpus.Load(ctx)
	e.metrics.SetDocuments(e.corpus.Len())
	return err
}

// SearchAvailable returns nil when queries can be ranked, or an error
// wrapping ErrSearchUnavailable with the cause.
func (e *Engine) SearchAvailable() error {
	if e.providerErr != nil {
		return fmt.Errorf("%w: %w", ErrSearchUnavailable, e.providerErr)
	}
	if e.searcher == nil {
		return ErrSearchUnavailable
	}
	if !e.corpus.Ready() {
		return fmt.Errorf("%w: documents have not been embedded", ErrSearchUnavailable)
	}
	return nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config {
	return e.config
}

// Corpus returns the document store.
func (e *Engine) Corpus() *corpus.Store {
	return e.corpus
}

// Searcher returns the searcher, or nil when the provider is unavailable.
func (e *Engine) Searcher() *search.Searcher {
	return e.searcher
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Metrics returns the metrics registry, which may be nil.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Close releases the corpus workers, the provider and the storage.
func (e *Engine) Close() error {
	if e.corpus != nil {
		if err := e.corpus.Close(); err != nil {
			e.logger.Error("error closing corpus", "err", err)
		}
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
		}
	}
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.logger.Error("error closing embedding cache", "err", err)
		}
	}
	if e.sessionRepo != nil {
		if err := e.sessionRepo.Close(); err != nil {
			e.logger.Error("error closing session repository", "err", err)
		}
	}
	if e.backend != nil && !e.backend.IsClosed() {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			return err
		}
	}
	return nil
}
