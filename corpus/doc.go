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

// Package corpus holds the searchable document collection.
//
// A Store is loaded from a directory of .txt files and grows through
// uploads. Every change re-embeds the whole collection through Rebuild,
// which fans batches of texts out to an ants worker pool, retries failed
// batches with exponential backoff, and publishes the embedded documents
// as one immutable snapshot. Readers never observe a partially rebuilt
// corpus, and a failed rebuild leaves the previous snapshot in place.
//
// An optional storage.EmbeddingCache, keyed by model name and content
// hash, lets rebuilds skip texts that were embedded before.
//
// Basic usage:
//
//	store, err := corpus.New("documents", provider.Embedder(),
//		corpus.WithCache(cache, provider.EmbeddingModel()),
//	)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	if err := store.Load(ctx); err != nil {
//		log.Printf("search unavailable: %v", err)
//	}
//	doc, err := store.Add(ctx, "notes.txt", "Hello world.")
package corpus
