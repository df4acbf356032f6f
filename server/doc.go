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

// Package server exposes the search engine over HTTP with echo.
//
// The HTML pages offer a search form, upload of .txt, .pdf and .docx
// files, per-visitor search history and favorites, and a document viewer.
// A JSON endpoint at /api/search returns ranked results for programmatic
// use, /healthz reports whether search is available, and /metrics serves
// Prometheus metrics.
//
// Visitors are identified by the docsift_session cookie, which carries a
// session UUID. Sessions are created on first visit.
package server
