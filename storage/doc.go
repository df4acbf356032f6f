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

// Package storage provides the persistence abstraction layer for docsift.
//
// Documents themselves live as plain text files in the corpus directory and
// are owned by package corpus. This package persists the derived state that
// is expensive or user-specific:
//
//   - EmbeddingCache: document vectors keyed by (model, content ID)
//   - SessionRepository: search history and favorites per visitor
//
// Values are encoded with mus-go serializers (see serialization.go).
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/state", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	cache := badger.NewEmbeddingCache(backend)
//	sessions := badger.NewSessionRepository(backend)
//
// Use in tests with in-memory storage:
//
//	cache, sessions, backend, err := badger.NewMemoryRepositories()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
