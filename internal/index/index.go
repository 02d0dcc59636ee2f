// Package index ties the vector index to the chunk store: it owns the
// (vector, chunk text, metadata) triples of a built corpus and persists them
// as one directory.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/atrbot/internal/models"
	"github.com/hyperjump/atrbot/internal/storage"
	"github.com/hyperjump/atrbot/internal/vector"
)

// ChunksFile is the SQLite file holding documents, chunks and the manifest.
const ChunksFile = "chunks.db"

var (
	// ErrNotFound is returned by Load when dir holds no saved index.
	ErrNotFound = errors.New("index not found")
	// ErrModelMismatch is returned when an index is queried with a different embedding model.
	ErrModelMismatch = errors.New("embedding model mismatch")
)

// ModelInfo identifies an embedding model. embedding.Embedder satisfies it.
type ModelInfo interface {
	Model() string
	Dimensions() int
}

// Stats summarizes index contents.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Vectors   int `json:"vectors"`
}

// Index is a searchable set of chunks. It is safe for concurrent readers.
type Index struct {
	mu       sync.RWMutex
	vectors  vector.VectorIndex
	docs     []*models.Document
	chunks   []*models.Chunk
	byID     map[string]*models.Chunk
	manifest models.Manifest
}

// New returns an empty index backed by vectors. The manifest's dimension and
// index type are taken from vectors; a build ID and time are assigned if unset.
func New(vectors vector.VectorIndex, manifest models.Manifest) *Index {
	manifest.Dimensions = vectors.Dimensions()
	manifest.IndexType = vectors.Type()
	manifest.Documents = 0
	manifest.Chunks = 0
	if manifest.BuildID == "" {
		manifest.BuildID = uuid.New().String()
	}
	if manifest.BuiltAt.IsZero() {
		manifest.BuiltAt = time.Now().UTC()
	}
	return &Index{
		vectors:  vectors,
		byID:     make(map[string]*models.Chunk),
		manifest: manifest,
	}
}

// AddDocuments records the documents the chunks come from.
func (idx *Index) AddDocuments(docs ...*models.Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs = append(idx.docs, docs...)
	idx.manifest.Documents = len(idx.docs)
}

// Add stores chunks with their vectors. Each chunk's Seq is set to its
// insertion position, which breaks ties between equal scores.
func (idx *Index) Add(ctx context.Context, chunks []*models.Chunk, vecs [][]float32) error {
	if len(chunks) != len(vecs) {
		return fmt.Errorf("got %d chunks and %d vectors", len(chunks), len(vecs))
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		if _, dup := idx.byID[c.ID]; dup {
			return fmt.Errorf("duplicate chunk id %s", c.ID)
		}
		ids[i] = c.ID
	}
	if err := idx.vectors.Add(ctx, ids, vecs); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	for _, c := range chunks {
		c.Seq = len(idx.chunks)
		idx.chunks = append(idx.chunks, c)
		idx.byID[c.ID] = c
	}
	idx.manifest.Chunks = len(idx.chunks)
	return nil
}

// Search returns up to k chunks most similar to query, highest score first.
// Equal scores keep insertion order. Ranks start at 1.
//
// Backends may pick arbitrarily among tied scores at the k boundary, so every
// hit is fetched and the cut is made here after the stable sort.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]*models.RetrievedChunk, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}
	hits, err := idx.vectors.Search(ctx, query, max(k, idx.vectors.Size()))
	if err != nil {
		return nil, err
	}
	results := make([]*models.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		c, ok := idx.byID[h.ID]
		if !ok {
			return nil, fmt.Errorf("vector %s has no stored chunk", h.ID)
		}
		results = append(results, &models.RetrievedChunk{Chunk: c, Score: h.Score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Seq < results[j].Chunk.Seq
	})
	results = results[:min(k, len(results))]
	for i, r := range results {
		r.Rank = i + 1
	}
	return results, nil
}

// CheckEmbedder returns ErrModelMismatch if m is not the model the index was built with.
func (idx *Index) CheckEmbedder(m ModelInfo) error {
	man := idx.Manifest()
	if m.Model() != man.EmbeddingModel || m.Dimensions() != man.Dimensions {
		return fmt.Errorf("%w: index built with %s (%d dims), query embedder is %s (%d dims)",
			ErrModelMismatch, man.EmbeddingModel, man.Dimensions, m.Model(), m.Dimensions())
	}
	return nil
}

// Manifest returns a copy of the build manifest.
func (idx *Index) Manifest() models.Manifest {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.manifest
}

// Documents returns the indexed documents in insertion order.
func (idx *Index) Documents() []*models.Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]*models.Document(nil), idx.docs...)
}

// Chunks returns all chunks in insertion order.
func (idx *Index) Chunks() []*models.Chunk {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]*models.Chunk(nil), idx.chunks...)
}

// Stats returns document, chunk and vector counts.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{Documents: len(idx.docs), Chunks: len(idx.chunks), Vectors: idx.vectors.Size()}
}

// Close releases the vector index.
func (idx *Index) Close() error {
	return idx.vectors.Close()
}

// Save writes the index to dir, replacing any index already there. The new
// index is written to a sibling directory first and swapped in when complete.
func (idx *Index) Save(ctx context.Context, dir string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	dir = filepath.Clean(dir)
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	tmp, err := os.MkdirTemp(filepath.Dir(dir), filepath.Base(dir)+".tmp-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := idx.vectors.Save(filepath.Join(tmp, vector.FileName(idx.vectors.Type()))); err != nil {
		return fmt.Errorf("failed to save vectors: %w", err)
	}
	if err := idx.writeStore(ctx, filepath.Join(tmp, ChunksFile)); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove previous index: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fmt.Errorf("move index into place: %w", err)
	}
	return nil
}

func (idx *Index) writeStore(ctx context.Context, path string) error {
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.CreateDocuments(ctx, idx.docs); err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	if err := store.BatchCreateChunks(ctx, idx.chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	man := idx.manifest
	if err := store.SaveManifest(ctx, &man); err != nil {
		return fmt.Errorf("failed to store manifest: %w", err)
	}
	return store.Close()
}

// Load reads the index saved in dir. The vector backend is the one recorded
// in the manifest.
func Load(ctx context.Context, dir string) (*Index, error) {
	dbPath := filepath.Join(dir, ChunksFile)
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrNotFound, dir)
		}
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	man, err := store.GetManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	docs, err := store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	chunks, err := store.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}

	vectors, err := vector.NewVectorIndex(man.IndexType, man.Dimensions)
	if err != nil {
		return nil, err
	}
	if err := vectors.Load(filepath.Join(dir, vector.FileName(man.IndexType))); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	if vectors.Size() != len(chunks) {
		return nil, fmt.Errorf("index in %s is inconsistent: %d vectors for %d chunks", dir, vectors.Size(), len(chunks))
	}

	idx := &Index{
		vectors:  vectors,
		docs:     docs,
		chunks:   chunks,
		byID:     make(map[string]*models.Chunk, len(chunks)),
		manifest: *man,
	}
	for _, c := range chunks {
		idx.byID[c.ID] = c
	}
	return idx, nil
}
