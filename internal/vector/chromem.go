package vector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/hyperjump/atrbot/pkg/utils"
)

const chromemCollection = "chunks"

// ChromemIndex stores vectors in a chromem-go collection. chromem-go does not
// order equal scores; callers that need a stable order fetch every hit and
// re-sort.
type ChromemIndex struct {
	dimensions int
	db         *chromem.DB
	collection *chromem.Collection
	mu         sync.RWMutex
}

// NewChromemIndex creates an empty in-memory chromem-go index.
func NewChromemIndex(dimensions int) (*ChromemIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection(chromemCollection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &ChromemIndex{dimensions: dimensions, db: db, collection: collection}, nil
}

// Type returns the index type identifier.
func (c *ChromemIndex) Type() string {
	return string(IndexTypeChromem)
}

// Dimensions returns the vector dimension.
func (c *ChromemIndex) Dimensions() int {
	return c.dimensions
}

// Add stores vectors as chromem documents. Zero vectors are rejected because
// chromem-go normalizes every stored embedding.
func (c *ChromemIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	docs := make([]chromem.Document, len(ids))
	for i, id := range ids {
		if len(vectors[i]) != c.dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", id, len(vectors[i]), c.dimensions)
		}
		if utils.Norm(vectors[i]) == 0 {
			return fmt.Errorf("cannot store zero vector for %s", id)
		}
		vec := make([]float32, c.dimensions)
		copy(vec, vectors[i])
		docs[i] = chromem.Document{ID: id, Embedding: vec}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search returns up to k results, highest similarity first. A zero query matches nothing.
func (c *ChromemIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != c.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), c.dimensions)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := c.collection.Count()
	if k <= 0 || count == 0 || utils.Norm(query) == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	q := make([]float32, len(query))
	copy(q, query)
	res, err := c.collection.QueryEmbedding(ctx, q, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	out := make([]*VectorResult, len(res))
	for i, r := range res {
		out[i] = &VectorResult{ID: r.ID, Score: float64(r.Similarity)}
	}
	return out, nil
}

// Save exports the collection to path as an uncompressed gob file.
func (c *ChromemIndex) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := c.db.ExportToFile(path, false, "", chromemCollection); err != nil {
		return fmt.Errorf("failed to export collection: %w", err)
	}
	return nil
}

// Load replaces the contents with the collection exported at path.
func (c *ChromemIndex) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	db := chromem.NewDB()
	if err := db.ImportFromFile(path, "", chromemCollection); err != nil {
		return fmt.Errorf("failed to import collection: %w", err)
	}
	collection := db.GetCollection(chromemCollection, nil)
	if collection == nil {
		return fmt.Errorf("collection %q not found in %s", chromemCollection, path)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.db = db
	c.collection = collection
	return nil
}

// Size returns the number of stored vectors.
func (c *ChromemIndex) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection.Count()
}

// Close is a no-op; the collection lives in memory.
func (c *ChromemIndex) Close() error {
	return nil
}
