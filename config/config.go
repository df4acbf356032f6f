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

// Package config loads application settings with viper.
//
// Settings come from, in increasing priority: built-in defaults, an
// optional YAML/TOML/JSON file, and DOCSIFT_* environment variables
// (DOCSIFT_SERVER_ADDRESS overrides server.address).
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/poiesic/docsift/ai"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "DOCSIFT"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Corpus  CorpusConfig  `mapstructure:"corpus"`
	Search  SearchConfig  `mapstructure:"search"`
	Session SessionConfig `mapstructure:"session"`
	Storage StorageConfig `mapstructure:"storage"`
	AI      AIConfig      `mapstructure:"ai"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	SecureCookies  bool          `mapstructure:"secure_cookies"`
}

type CorpusConfig struct {
	Dir          string        `mapstructure:"dir"`
	BatchSize    int           `mapstructure:"batch_size"`
	PoolSize     int           `mapstructure:"pool_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	EmbedTimeout time.Duration `mapstructure:"embed_timeout"`
}

type SearchConfig struct {
	Threshold     float64 `mapstructure:"threshold"`
	MaxResults    int     `mapstructure:"max_results"`
	SnippetLength int     `mapstructure:"snippet_length"`
}

type SessionConfig struct {
	HistorySize int           `mapstructure:"history_size"`
	TTL         time.Duration `mapstructure:"ttl"` // zero keeps sessions forever
}

type StorageConfig struct {
	Dir             string `mapstructure:"dir"`
	InMemory        bool   `mapstructure:"in_memory"`
	CacheEmbeddings bool   `mapstructure:"cache_embeddings"`
}

type AIConfig struct {
	Host           string `mapstructure:"host"`
	EmbeddingHost  string `mapstructure:"embedding_host"` // overrides Host for embeddings
	AnswerHost     string `mapstructure:"answer_host"`    // overrides Host for answers
	EmbeddingModel string `mapstructure:"embedding_model"`
	AnswerModel    string `mapstructure:"answer_model"` // empty disables answers
	APIKey         string `mapstructure:"api_key"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.request_timeout", 2*time.Minute)
	v.SetDefault("server.secure_cookies", false)

	v.SetDefault("corpus.dir", "documents")
	v.SetDefault("corpus.batch_size", 32)
	v.SetDefault("corpus.pool_size", 4)
	v.SetDefault("corpus.max_retries", 3)
	v.SetDefault("corpus.retry_delay", time.Second)
	v.SetDefault("corpus.embed_timeout", 60*time.Second)

	v.SetDefault("search.threshold", 0.1)
	v.SetDefault("search.max_results", 20)
	v.SetDefault("search.snippet_length", 150)

	v.SetDefault("session.history_size", 10)
	v.SetDefault("session.ttl", 30*24*time.Hour)

	v.SetDefault("storage.dir", ".docsift")
	v.SetDefault("storage.in_memory", false)
	v.SetDefault("storage.cache_embeddings", true)

	v.SetDefault("ai.host", "http://localhost:11434/v1")
	v.SetDefault("ai.embedding_host", "")
	v.SetDefault("ai.answer_host", "")
	v.SetDefault("ai.embedding_model", "all-minilm")
	v.SetDefault("ai.answer_model", "")
	v.SetDefault("ai.api_key", "")

	v.SetDefault("log.level", "info")
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("invalid built-in configuration: %w", err))
	}
	return &cfg
}

// Load reads the configuration. When path is empty, a file named
// docsift.{yaml,toml,json} is looked up in the working directory and in
// ./config; a missing file is not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("docsift")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every setting is in range.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(strings.TrimSpace(c.Server.Address) != "", "server.address is required")
	check(c.Server.MaxUploadBytes > 0, "server.max_upload_bytes must be > 0")
	check(c.Server.RequestTimeout >= 0, "server.request_timeout cannot be negative")

	check(strings.TrimSpace(c.Corpus.Dir) != "", "corpus.dir is required")
	check(c.Corpus.BatchSize > 0, "corpus.batch_size must be > 0")
	check(c.Corpus.PoolSize > 0, "corpus.pool_size must be > 0")
	check(c.Corpus.MaxRetries > 0, "corpus.max_retries must be > 0")
	check(c.Corpus.RetryDelay >= 0, "corpus.retry_delay cannot be negative")
	check(c.Corpus.EmbedTimeout >= 0, "corpus.embed_timeout cannot be negative")

	check(!math.IsNaN(c.Search.Threshold) && c.Search.Threshold >= 0 && c.Search.Threshold <= 1,
		"search.threshold must be in [0, 1], got %v", c.Search.Threshold)
	check(c.Search.MaxResults > 0, "search.max_results must be > 0")
	check(c.Search.SnippetLength > 0, "search.snippet_length must be > 0")

	check(c.Session.HistorySize > 0, "session.history_size must be > 0")
	check(c.Session.TTL >= 0, "session.ttl cannot be negative")

	check(c.Storage.InMemory || strings.TrimSpace(c.Storage.Dir) != "", "storage.dir is required")

	if err := c.AIConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// AIConfig converts the ai section into an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithHost(c.AI.Host),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithAnswerModel(c.AI.AnswerModel),
		ai.WithAPIKey(c.AI.APIKey),
	}
	if c.AI.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.AI.EmbeddingHost))
	}
	if c.AI.AnswerHost != "" {
		opts = append(opts, ai.WithAnswerHost(c.AI.AnswerHost))
	}
	cfg := ai.NewConfig(opts...)
	cfg.Normalize()
	return cfg
}
