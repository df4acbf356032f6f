package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "same content produces same ID", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, IDFromContent(tt.content), IDFromContent(tt.content))
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	assert.NotEqual(t, IDFromContent("content1"), IDFromContent("content2"))
}

func TestDocument_Clone(t *testing.T) {
	doc := &Document{Name: "a.txt", Text: "alpha", Vector: []float32{1, 2, 3}}
	clone := doc.Clone()

	assert.Equal(t, doc, clone)
	clone.Vector[0] = 42
	assert.Equal(t, float32(1), doc.Vector[0], "clone must not share vector storage")
	assert.Equal(t, doc.ContentID(), clone.ContentID())
}

func TestSession_IsFavorite(t *testing.T) {
	s := &Session{Favorites: []string{"a.txt", "b.txt"}}
	assert.True(t, s.IsFavorite("b.txt"))
	assert.False(t, s.IsFavorite("c.txt"))
}
