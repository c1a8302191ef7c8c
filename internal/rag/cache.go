package rag

import (
	"context"
	"fmt"
)

// VectorCache stores chunk vectors between runs so an unchanged document does
// not need to be embedded again.
type VectorCache interface {
	LookupVectors(ctx context.Context, key CacheKey) ([]Passage, bool, error)
	StoreVectors(ctx context.Context, key CacheKey, passages []Passage) error
}

// CacheKey identifies the vectors of one document under one embedding setup.
type CacheKey struct {
	DocumentSHA256 string
	EmbeddingModel string
	ChunkSize      int
	ChunkOverlap   int
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s/%s/%d/%d", k.DocumentSHA256, k.EmbeddingModel, k.ChunkSize, k.ChunkOverlap)
}
