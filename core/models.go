package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Document is a single searchable text held by the corpus.
// The vector is populated when the corpus is rebuilt.
type Document struct {
	Name   string    // Sanitized filename, unique within the corpus
	Text   string    // Plain text contents
	Vector []float32 // Embedding vector (populated by rebuild)
}

// ContentID returns the content-derived ID of the document text.
func (d *Document) ContentID() ID {
	return IDFromContent(d.Text)
}

// Clone returns a shallow copy of the document that shares no vector storage.
func (d *Document) Clone() *Document {
	c := *d
	if d.Vector != nil {
		c.Vector = make([]float32, len(d.Vector))
		copy(c.Vector, d.Vector)
	}
	return &c
}

// SearchResult is a single ranked hit.
// Score is a percentage in [0,100] rounded to two decimal places.
type SearchResult struct {
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet"`
}

// QueryResponse is the serializable answer to a search request.
type QueryResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Answer  string         `json:"answer,omitempty"`
}

// Session holds per-visitor UI state.
type Session struct {
	ID        string
	History   []string  // Most recent query first
	Favorites []string  // Filenames in the order they were favorited
	UpdatedAt time.Time // Last modification
}

// IsFavorite reports whether the filename is in the session's favorites.
func (s *Session) IsFavorite(filename string) bool {
	for _, f := range s.Favorites {
		if f == filename {
			return true
		}
	}
	return false
}
