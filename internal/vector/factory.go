package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search. Good for small corpora.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeChromem stores vectors in a chromem-go collection.
	IndexTypeChromem IndexType = "chromem"
)

// NewVectorIndex creates a vector index of the specified type.
// Supported types: "memory" (default), "chromem".
func NewVectorIndex(indexType string, dimensions int) (VectorIndex, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeChromem:
		return NewChromemIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, chromem)", indexType)
	}
}

// FileName returns the file name a vector index of the given type is saved under.
func FileName(indexType string) string {
	if IndexType(indexType) == IndexTypeChromem {
		return "vectors.gob"
	}
	return "vectors.bin"
}
