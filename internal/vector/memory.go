package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/atrbot/pkg/utils"
)

// memoryMagic opens every file written by MemoryIndex.Save.
var memoryMagic = [4]byte{'A', 'T', 'R', 'V'}

// ErrBadIndexFile is returned by Load for files not written by MemoryIndex.Save.
var ErrBadIndexFile = errors.New("not a memory index file")

// MemoryIndex scans every stored vector on each query. Vectors live in one
// row-major slab; row i belongs to ids[i]. Equal scores keep insertion order.
type MemoryIndex struct {
	mu   sync.RWMutex
	dim  int
	ids  []string
	slab []float32
}

// NewMemoryIndex returns an empty index for vectors of the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &MemoryIndex{dim: dimensions}, nil
}

func (m *MemoryIndex) Type() string    { return string(IndexTypeMemory) }
func (m *MemoryIndex) Dimensions() int { return m.dim }

// Size returns the number of stored vectors.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

func (m *MemoryIndex) row(i int) []float32 {
	return m.slab[i*m.dim : (i+1)*m.dim]
}

// Add appends vectors under ids. The batch is rejected as a whole if any
// vector has the wrong dimension.
func (m *MemoryIndex) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("got %d ids for %d vectors", len(ids), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != m.dim {
			return fmt.Errorf("vector %s has %d dimensions, index has %d", ids[i], len(v), m.dim)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, ids...)
	for _, v := range vectors {
		m.slab = append(m.slab, v...)
	}
	return nil
}

// Search scores every row against query and returns the best k.
func (m *MemoryIndex) Search(_ context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != m.dim {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(query), m.dim)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	hits := make([]*VectorResult, len(m.ids))
	for i, id := range m.ids {
		hits[i] = &VectorResult{ID: id, Score: utils.Dot(query, m.row(i))}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	return hits[:min(k, len(hits))], nil
}

// Save writes the index to path:
//
//	"ATRV" | dim uint32 | n uint32 | n × (uvarint len, id) | n×dim float32
//
// All integers and floats are little endian.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := struct {
		Magic [4]byte
		Dim   uint32
		N     uint32
	}{memoryMagic, uint32(m.dim), uint32(len(m.ids))}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	var lenBuf [binary.MaxVarintLen64]byte
	for _, id := range m.ids {
		n := binary.PutUvarint(lenBuf[:], uint64(len(id)))
		w.Write(lenBuf[:n])
		w.WriteString(id)
	}
	if err := binary.Write(w, binary.LittleEndian, m.slab); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	return f.Close()
}

// Load replaces the contents with the file at path. The file's dimension must
// match the index.
func (m *MemoryIndex) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header struct {
		Magic [4]byte
		Dim   uint32
		N     uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if header.Magic != memoryMagic {
		return ErrBadIndexFile
	}
	if int(header.Dim) != m.dim {
		return fmt.Errorf("file has %d dimensions, index has %d", header.Dim, m.dim)
	}

	ids := make([]string, header.N)
	for i := range ids {
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("read id %d: %w", i, err)
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("read id %d: %w", i, err)
		}
		ids[i] = string(b)
	}
	slab := make([]float32, int(header.N)*m.dim)
	if err := binary.Read(r, binary.LittleEndian, slab); err != nil {
		return fmt.Errorf("read vectors: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids, m.slab = ids, slab
	return nil
}

// Close is a no-op.
func (m *MemoryIndex) Close() error { return nil }
