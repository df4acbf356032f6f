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


package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/docsift"
	"github.com/poiesic/docsift/config"
	"github.com/poiesic/docsift/core"
	"github.com/poiesic/docsift/corpus"
	"github.com/poiesic/docsift/metrics"
	"github.com/poiesic/docsift/search"
	"github.com/poiesic/docsift/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docsift",
		Usage: "Semantic search over a folder of documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a configuration file (yaml, toml or json)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the web interface",
				Action: serveCommand,
				Flags: append(corpusFlags(),
					&cli.StringFlag{
						Name:    "addr",
						Aliases: []string{"a"},
						Usage:   "Listen address (overrides server.address)",
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Rank the documents against a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append(corpusFlags(),
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results (overrides search.max_results)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the response as JSON",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print timing for each search stage",
					},
				),
			},
			{
				Name:   "index",
				Usage:  "Embed every document and refresh the embedding cache",
				Action: indexCommand,
				Flags: append(corpusFlags(),
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N texts",
						Value: 10,
					},
				),
			},
		},
	}
}

func corpusFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "documents",
			Aliases: []string{"d"},
			Usage:   "Directory holding the documents (overrides corpus.dir)",
		},
		&cli.BoolFlag{
			Name:  "in-memory",
			Usage: "Keep embeddings and sessions in memory only",
		},
	}
}

// loadConfig reads the configuration file and applies command line
// overrides on top of it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if !c.IsSet("log-level") && cfg.Log.Level != "" {
		if err := configureLogger(cfg.Log.Level); err != nil {
			return nil, err
		}
	}
	if c.IsSet("documents") {
		cfg.Corpus.Dir = c.String("documents")
	}
	if c.IsSet("in-memory") {
		cfg.Storage.InMemory = c.Bool("in-memory")
	}
	if c.IsSet("addr") {
		cfg.Server.Address = c.String("addr")
	}
	if c.IsSet("limit") {
		cfg.Search.MaxResults = c.Int("limit")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := docsift.NewEngine(cfg, docsift.WithMetrics(metrics.New()))
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Load(ctx); err != nil {
		slog.Warn("search is unavailable until the documents can be embedded", "err", err)
	}

	srv, err := server.New(engine)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a query is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var opts []docsift.EngineOption
	if c.Bool("verbose") {
		opts = append(opts, docsift.WithSearchMonitor(newTimingMonitor(os.Stderr)))
	}
	engine, err := docsift.NewEngine(cfg, opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Load(c.Context); err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if err := engine.SearchAvailable(); err != nil {
		return err
	}

	resp, err := engine.Searcher().Search(c.Context, query)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResponse(c.App.Writer, resp)
	return nil
}

func printResponse(w io.Writer, resp *core.QueryResponse) {
	if resp.Answer != "" {
		fmt.Fprintf(w, "Answer: %s\n\n", resp.Answer)
	}
	fmt.Fprintf(w, "Found %d hits\n", len(resp.Results))
	for i, hit := range resp.Results {
		fmt.Fprintf(w, "%d: %s [%0.2f%%]\n   %s\n", i+1, hit.Filename, hit.Score, hit.Snippet)
	}
}

func indexCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	engine, err := docsift.NewEngine(cfg,
		docsift.WithProgress(corpus.NewProgressTracker(os.Stderr, c.Int("report-interval"))),
	)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(os.Stderr, "Documents: %s\n", cfg.Corpus.Dir)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", engine.Config().AIConfig().EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	if err := engine.Load(c.Context); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Indexed %d documents\n", engine.Corpus().Len())
	return nil
}

// timingMonitor prints how long each stage of a search took.
type timingMonitor struct {
	w     io.Writer
	start time.Time
	last  time.Time
}

var _ search.SearchMonitor = (*timingMonitor)(nil)

func newTimingMonitor(w io.Writer) *timingMonitor {
	return &timingMonitor{w: w}
}

func (m *timingMonitor) lap() time.Duration {
	now := time.Now()
	d := now.Sub(m.last)
	m.last = now
	return d
}

func (m *timingMonitor) Start(query string) {
	m.start = time.Now()
	m.last = m.start
	fmt.Fprintf(m.w, "query: %q\n", query)
}

func (m *timingMonitor) AfterEmbedding(vector []float32) {
	fmt.Fprintf(m.w, "embedded query (%d dims) in %s\n", len(vector), m.lap())
}

func (m *timingMonitor) AfterMatch(matches []search.Match) {
	fmt.Fprintf(m.w, "matched %d documents in %s\n", len(matches), m.lap())
}

func (m *timingMonitor) Failed(err error) {
	fmt.Fprintf(m.w, "search failed after %s: %v\n", time.Since(m.start), err)
}

func (m *timingMonitor) Finish(results []core.SearchResult) {
	fmt.Fprintf(m.w, "%d results in %s\n", len(results), time.Since(m.start))
}

func setupLogger(c *cli.Context) error {
	return configureLogger(c.String("log-level"))
}

func configureLogger(levelStr string) error {
	// Map string to slog.Level
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
