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

// Package extract converts uploaded documents into plain text.
//
// Three formats are recognised by file extension:
//
//   - .txt: UTF-8 text, returned as-is
//   - .pdf: text layer extracted with github.com/ledongthuc/pdf
//   - .docx: paragraph text read from word/document.xml
//
// Any other extension yields core.ErrUnsupportedFormat.
package extract
