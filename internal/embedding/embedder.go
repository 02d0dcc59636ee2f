// Package embedding turns text into unit-length vectors for similarity search.
package embedding

import "context"

// Embedder produces vector embeddings for text. Returned vectors have unit
// L2 norm and length Dimensions(). Model identifies the embedding model so an
// index built with one model is never queried with another.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
	Close() error
}
