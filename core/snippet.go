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

package core

import "strings"

const (
	// DefaultSnippetLength is the default maximum snippet length in runes.
	DefaultSnippetLength = 150

	// Ellipsis is appended to truncated snippets.
	Ellipsis = "..."
)

// Snippet returns a short excerpt of text suitable for a result listing.
//
// The first sentence is used when it is shorter than maxLen. Otherwise a
// short text is returned as is, and a long one is cut at the last word
// boundary in the final fifth of the window (or hard at maxLen) and marked
// with an ellipsis. Lengths are measured in runes.
func Snippet(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	if maxLen <= 0 {
		maxLen = DefaultSnippetLength
	}

	first, _, _ := strings.Cut(text, ".")
	if runeLen(first) < maxLen {
		return strings.TrimSpace(first) + "."
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	window := runes[:maxLen]
	cut := maxLen
	if i := lastSpace(window); i >= 0 && float64(i) >= 0.8*float64(maxLen) {
		cut = i
	}
	return string(window[:cut]) + Ellipsis
}

func runeLen(s string) int {
	return len([]rune(s))
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}
