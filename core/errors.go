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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyContent indicates the document text is empty after trimming.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidFilename indicates a filename is empty or unusable after sanitizing.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrDocumentNotFound indicates a lookup for an unknown document.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrUnsupportedFormat indicates an upload with an extension that cannot be extracted.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)
