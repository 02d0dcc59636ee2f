// Package vector provides vector indexes and similarity search over unit-length embeddings.
package vector

import "context"

// VectorIndex stores vectors under string IDs and answers top-k similarity
// queries. Indexes are append-only; a changed corpus is rebuilt from scratch.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single vector search hit (ID is the chunk ID).
type VectorResult struct {
	ID    string
	Score float64 // inner product; cosine similarity for normalized vectors
}
