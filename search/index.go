package search

import (
	"math"

	"github.com/poiesic/docsift/core"
)

// Match is a document whose similarity met the threshold.
type Match struct {
	Position   int     // Index of the document in the corpus snapshot
	Similarity float64 // Cosine similarity in [-1, 1]
}

// Index finds documents similar to a query vector.
type Index interface {
	// Match returns every document with similarity >= threshold.
	Match(query []float32, threshold float64) []Match
}

// IndexFactory builds an Index over a corpus snapshot.
type IndexFactory func(docs []*core.Document) Index

// FlatIndex is an exact index that scores every document.
type FlatIndex struct {
	vectors [][]float32
	norms   []float64
}

var _ Index = (*FlatIndex)(nil)

// NewFlatIndex creates an exact index over docs.
func NewFlatIndex(docs []*core.Document) Index {
	idx := &FlatIndex{
		vectors: make([][]float32, len(docs)),
		norms:   make([]float64, len(docs)),
	}
	for i, d := range docs {
		idx.vectors[i] = d.Vector
		idx.norms[i] = magnitude(d.Vector)
	}
	return idx
}

// Match returns matches in corpus order.
func (f *FlatIndex) Match(query []float32, threshold float64) []Match {
	qNorm := magnitude(query)
	var matches []Match
	for i, v := range f.vectors {
		s := cosine(query, v, qNorm, f.norms[i])
		if s >= threshold {
			matches = append(matches, Match{Position: i, Similarity: s})
		}
	}
	return matches
}

// CosineSimilarity returns the cosine of the angle between a and b.
// It is 0 when either vector has zero magnitude or the dimensions differ.
func CosineSimilarity(a, b []float32) float64 {
	return cosine(a, b, magnitude(a), magnitude(b))
}

func cosine(a, b []float32, normA, normB float64) float64 {
	if len(a) != len(b) || normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	s := dot / (normA * normB)
	// Clamp rounding drift so self-similarity never exceeds 1.
	return max(-1, min(1, s))
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
