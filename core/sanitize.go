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

import (
	"strings"
	"unicode"
)

// SanitizeFilename reduces a user supplied filename to something that can
// only name a file directly inside the storage directory.
//
// Every rune that is not a letter, digit, underscore, whitespace, dot or
// hyphen is removed, which also drops '/' and '\' so directory components
// collapse into the name ("../../etc/passwd" becomes "etcpasswd"). Leading
// dots and surrounding whitespace are then trimmed.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			return r
		case r == '_', r == '.', r == '-':
			return r
		}
		return -1
	}, name)
	name = strings.TrimLeftFunc(name, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
	return strings.TrimRightFunc(name, unicode.IsSpace)
}
