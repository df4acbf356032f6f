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

// Package session keeps per-visitor UI state: recent queries and
// favorite documents.
//
// Sessions are identified by random UUIDs and persisted through a
// storage.SessionRepository, so history and favorites survive restarts.
// Unknown or malformed identifiers are replaced by a fresh session rather
// than trusted.
package session
