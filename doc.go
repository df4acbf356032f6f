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

// Package docsift is a semantic document search engine.
//
// An Engine wires together the pieces of the application: a corpus of
// plain-text documents loaded from a directory, an embedding provider
// reached through an OpenAI-compatible API, a cosine-similarity searcher,
// and persistent per-visitor sessions holding search history and
// favorites. Embeddings and sessions are stored in BadgerDB.
//
// Basic usage:
//
//	cfg, err := config.Load("")
//	if err != nil {
//		return err
//	}
//	engine, err := docsift.NewEngine(cfg)
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	if err := engine.Load(ctx); err != nil {
//		slog.Warn("search unavailable", "err", err)
//	}
//	results := engine.Searcher().Rank(ctx, "quarterly revenue")
package docsift
