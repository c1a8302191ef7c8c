package rag

import (
	"fmt"
	"math"
	"sort"

	"reportqa/internal/models"
)

// Passage is an embedded chunk.
type Passage struct {
	Text   string
	Page   int
	Vector []float32
}

// Hit is a search result.
type Hit struct {
	Passage Passage
	Score   float64
}

// Index is an in-memory brute force vector index. It is not modified after
// the engine finishes building it, so concurrent searches are safe.
type Index struct {
	similarity models.Similarity
	dimensions int
	passages   []Passage
}

// NewIndex creates an empty index scoring with the given similarity.
func NewIndex(similarity models.Similarity) *Index {
	return &Index{similarity: similarity}
}

// Add appends passages. Every vector must share one dimension.
func (idx *Index) Add(passages ...Passage) error {
	for _, passage := range passages {
		if len(passage.Vector) == 0 {
			return fmt.Errorf("passage on page %d has an empty vector", passage.Page)
		}
		if idx.dimensions == 0 {
			idx.dimensions = len(passage.Vector)
		} else if len(passage.Vector) != idx.dimensions {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(passage.Vector), idx.dimensions)
		}
		idx.passages = append(idx.passages, passage)
	}
	return nil
}

// Len returns the number of passages.
func (idx *Index) Len() int {
	return len(idx.passages)
}

// Search returns up to k hits by descending score. Equal scores keep
// insertion order.
func (idx *Index) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 || len(idx.passages) == 0 {
		return nil, nil
	}
	if len(query) != idx.dimensions {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), idx.dimensions)
	}
	hits := make([]Hit, len(idx.passages))
	for i, passage := range idx.passages {
		hits[i] = Hit{Passage: passage, Score: idx.score(query, passage.Vector)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (idx *Index) score(a, b []float32) float64 {
	if idx.similarity == models.SimilarityDot {
		return dot(a, b)
	}
	return cosine(a, b)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func cosine(a, b []float32) float64 {
	var product, normA, normB float64
	for i := range a {
		product += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return product / (math.Sqrt(normA) * math.Sqrt(normB))
}
