package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/poiesic/docsift/ai"
	"github.com/poiesic/docsift/core"
)

const (
	DefaultThreshold  = 0.1
	DefaultMaxResults = 20

	// maxAnswerContexts bounds how many top documents are passed to the answerer.
	maxAnswerContexts = 3
)

// Corpus supplies the documents to rank.
type Corpus interface {
	// Snapshot returns the current documents in corpus order.
	Snapshot() []*core.Document
	// Ready reports whether every document carries an embedding.
	Ready() bool
}

// Searcher ranks corpus documents by semantic similarity to a query.
type Searcher struct {
	corpus        Corpus
	embedder      ai.Embedder
	answerer      ai.Answerer
	indexFactory  IndexFactory
	monitor       SearchMonitor
	threshold     float64
	maxResults    int
	snippetLength int
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithThreshold sets the minimum cosine similarity, a fraction in [0, 1].
// Default is 0.1.
func WithThreshold(threshold float64) Option {
	return func(s *Searcher) error {
		if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
			return fmt.Errorf("%w: threshold %v not in [0, 1]", ErrInvalidOption, threshold)
		}
		s.threshold = threshold
		return nil
	}
}

// WithMaxResults caps the number of results. Default is 20.
func WithMaxResults(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return fmt.Errorf("%w: max results %d", ErrInvalidOption, n)
		}
		s.maxResults = n
		return nil
	}
}

// WithSnippetLength sets the snippet length in characters. Default is 150.
func WithSnippetLength(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return fmt.Errorf("%w: snippet length %d", ErrInvalidOption, n)
		}
		s.snippetLength = n
		return nil
	}
}

// WithIndexFactory replaces the exact FlatIndex.
func WithIndexFactory(factory IndexFactory) Option {
	return func(s *Searcher) error {
		if factory == nil {
			factory = NewFlatIndex
		}
		s.indexFactory = factory
		return nil
	}
}

// WithAnswerer enables free-form answers in Search responses.
func WithAnswerer(answerer ai.Answerer) Option {
	return func(s *Searcher) error {
		s.answerer = answerer
		return nil
	}
}

// WithMonitor sets the monitor used by Rank and Search.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		s.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(corpus Corpus, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if corpus == nil {
		return nil, ErrCorpusRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		corpus:        corpus,
		embedder:      embedder,
		indexFactory:  NewFlatIndex,
		monitor:       &noopMonitor{},
		threshold:     DefaultThreshold,
		maxResults:    DefaultMaxResults,
		snippetLength: core.DefaultSnippetLength,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.monitor == nil {
		s.monitor = &noopMonitor{}
	}
	s.logger = s.logger.With("component", "search")

	return s, nil
}

// Threshold returns the minimum similarity a result must reach.
func (s *Searcher) Threshold() float64 {
	return s.threshold
}

// Rank returns the documents matching query, best first.
// It never fails; problems are logged and produce an empty list.
func (s *Searcher) Rank(ctx context.Context, query string) []core.SearchResult {
	return s.RankWithMonitor(ctx, query, nil)
}

// RankWithMonitor is Rank with a per-call monitor. A nil monitor falls
// back to the one configured with WithMonitor.
func (s *Searcher) RankWithMonitor(ctx context.Context, query string, monitor SearchMonitor) []core.SearchResult {
	results, _ := s.rank(ctx, query, monitor)
	return results
}

// Search ranks query and, when an answerer is configured, asks it for an
// answer grounded in the top results. Answer failures are logged and
// leave the answer empty. Only context cancellation is reported as an
// error.
func (s *Searcher) Search(ctx context.Context, query string) (*core.QueryResponse, error) {
	results, docs := s.rank(ctx, query, nil)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &core.QueryResponse{
		Query:   query,
		Results: results,
	}
	if s.answerer == nil || len(docs) == 0 {
		return resp, nil
	}

	contexts := make([]string, 0, maxAnswerContexts)
	for _, d := range docs[:min(len(docs), maxAnswerContexts)] {
		contexts = append(contexts, d.Text)
	}
	answer, err := s.answerer.Answer(ctx, query, contexts)
	if err != nil {
		s.logger.Warn("answer generation failed", "query", query, "err", err)
		return resp, nil
	}
	resp.Answer = strings.TrimSpace(answer)
	return resp, nil
}

// rank returns the results and the matching documents in the same order.
func (s *Searcher) rank(ctx context.Context, query string, monitor SearchMonitor) (results []core.SearchResult, docs []*core.Document) {
	if monitor == nil {
		monitor = s.monitor
	}
	monitor.Start(query)

	results = []core.SearchResult{}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("ranking panicked: %v", r)
			s.logger.Error("ranking failed", "query", query, "err", err)
			monitor.Failed(err)
			results, docs = []core.SearchResult{}, nil
		}
		monitor.Finish(results)
	}()

	if strings.TrimSpace(query) == "" {
		return results, nil
	}

	snapshot := s.corpus.Snapshot()
	if len(snapshot) == 0 {
		return results, nil
	}
	if !s.corpus.Ready() {
		s.logger.Warn("corpus has no embeddings, skipping search", "query", query)
		return results, nil
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		monitor.Failed(err)
		return results, nil
	}
	monitor.AfterEmbedding(vector)

	matches := s.indexFactory(snapshot).Match(vector, s.threshold)
	monitor.AfterMatch(matches)

	// Order by corpus position first so the stable sort below keeps
	// corpus order among equal scores whatever order the index used.
	slices.SortFunc(matches, func(a, b Match) int {
		return cmp.Compare(a.Position, b.Position)
	})

	type scored struct {
		doc   *core.Document
		score float64
	}
	hits := make([]scored, 0, len(matches))
	for _, m := range matches {
		if m.Position < 0 || m.Position >= len(snapshot) || m.Similarity < s.threshold {
			continue
		}
		hits = append(hits, scored{doc: snapshot[m.Position], score: Score(m.Similarity)})
	}

	slices.SortStableFunc(hits, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	if len(hits) > s.maxResults {
		hits = hits[:s.maxResults]
	}

	results = make([]core.SearchResult, len(hits))
	docs = make([]*core.Document, len(hits))
	for i, h := range hits {
		results[i] = core.SearchResult{
			Filename: h.doc.Name,
			Score:    h.score,
			Snippet:  core.Snippet(h.doc.Text, s.snippetLength),
		}
		docs[i] = h.doc
	}
	return results, docs
}

// Score converts a cosine similarity to a percentage rounded to two
// decimal places.
func Score(similarity float64) float64 {
	return math.Round(similarity*100*100) / 100
}
