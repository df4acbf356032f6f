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

// Package search ranks corpus documents against a free-text query.
//
// Ranking is exact cosine similarity between the query embedding and every
// document vector:
//
//  1. Blank queries and empty corpora produce no results.
//  2. Similarities below the threshold (default 0.1) are dropped.
//  3. Scores are similarity percentages rounded to two decimals.
//  4. Results are ordered by score, highest first. Equal scores keep
//     corpus order.
//  5. At most MaxResults results are returned, each with a snippet.
//
// Scoring goes through the Index interface. FlatIndex compares against
// every vector; an approximate index can be supplied with WithIndexFactory
// without changing callers.
//
// Ranking never fails: embedding errors are logged and yield an empty
// result list.
package search
