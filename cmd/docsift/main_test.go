package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/docsift/config"
	"github.com/poiesic/docsift/core"
	"github.com/poiesic/docsift/search"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func TestAppCommands(t *testing.T) {
	app := newApp()

	for _, name := range []string{"serve", "search", "index"} {
		cmd := findCommand(t, app, name)
		assert.NotNil(t, cmd.Action, name)

		var docsFlag *cli.StringFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "documents" {
				docsFlag = f
				break
			}
		}
		require.NotNil(t, docsFlag, name)
		assert.Empty(t, docsFlag.Value, "documents has no default so config wins")
	}

	t.Run("report-interval has default value of 10", func(t *testing.T) {
		cmd := findCommand(t, app, "index")
		var reportFlag *cli.IntFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "report-interval" {
				reportFlag = f
				break
			}
		}
		require.NotNil(t, reportFlag)
		assert.Equal(t, 10, reportFlag.Value)
	})
}

func TestSearchCommandValidation(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("missing query fails", func(t *testing.T) {
		err := newApp().Run([]string{"docsift", "search"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query is required")
	})

	t.Run("missing config file fails", func(t *testing.T) {
		err := newApp().Run([]string{"docsift", "--config", "nope.yaml", "search", "hello"})
		require.Error(t, err)
	})

	t.Run("invalid limit fails", func(t *testing.T) {
		err := newApp().Run([]string{"docsift", "search", "--in-memory", "--limit", "0", "hello"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_results")
	})
}

func TestIndexCommandValidation(t *testing.T) {
	t.Chdir(t.TempDir())

	err := newApp().Run([]string{"docsift", "index", "--in-memory", "--report-interval", "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report-interval")
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docsift.yaml"), []byte("corpus:\n  dir: from-file\nserver:\n  address: \":9000\"\n"), 0o644))

	run := func(args ...string) *config.Config {
		t.Helper()
		var got *config.Config
		app := &cli.App{
			Name:  "docsift",
			Flags: []cli.Flag{&cli.StringFlag{Name: "config"}, &cli.StringFlag{Name: "log-level", Value: "info"}},
			Commands: []*cli.Command{
				{
					Name:  "serve",
					Flags: append(corpusFlags(), &cli.StringFlag{Name: "addr"}),
					Action: func(c *cli.Context) error {
						cfg, err := loadConfig(c)
						got = cfg
						return err
					},
				},
			},
		}
		require.NoError(t, app.Run(append([]string{"docsift", "serve"}, args...)))
		return got
	}

	cfg := run()
	assert.Equal(t, "from-file", cfg.Corpus.Dir)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.False(t, cfg.Storage.InMemory)

	cfg = run("--documents", "from-flag", "--addr", ":7000", "--in-memory")
	assert.Equal(t, "from-flag", cfg.Corpus.Dir)
	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.True(t, cfg.Storage.InMemory)
}

func TestPrintResponse(t *testing.T) {
	var buf bytes.Buffer
	printResponse(&buf, &core.QueryResponse{
		Query:  "pasta",
		Answer: "Boil it.",
		Results: []core.SearchResult{
			{Filename: "pasta.txt", Score: 44.72, Snippet: "Boil pasta in salted water."},
		},
	})

	assert.Equal(t, "Answer: Boil it.\n\nFound 1 hits\n1: pasta.txt [44.72%]\n   Boil pasta in salted water.\n", buf.String())
}

func TestTimingMonitor(t *testing.T) {
	var buf bytes.Buffer
	m := newTimingMonitor(&buf)

	m.Start("pasta")
	m.AfterEmbedding(make([]float32, 4))
	m.AfterMatch([]search.Match{{Position: 0, Similarity: 0.5}})
	m.Failed(errors.New("boom"))
	m.Finish(nil)

	out := buf.String()
	assert.Contains(t, out, `query: "pasta"`)
	assert.Contains(t, out, "embedded query (4 dims)")
	assert.Contains(t, out, "matched 1 documents")
	assert.Contains(t, out, "search failed after")
	assert.Contains(t, out, "0 results in")
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"warn", slog.LevelWarn},
			{"error", slog.LevelError},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: tc.input,
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc.input})
				require.NoError(t, err)
				assert.True(t, slog.Default().Enabled(context.Background(), tc.expected))
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, tc := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(tc, func(t *testing.T) {
				assert.NoError(t, configureLogger(tc))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}

		err := app.Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		var level string
		app := newApp()
		app.Commands = nil
		app.Action = func(c *cli.Context) error {
			level = c.String("log-level")
			return nil
		}

		require.NoError(t, app.Run([]string{"docsift", "-l", "debug"}))
		assert.Equal(t, "debug", level)
	})
}
