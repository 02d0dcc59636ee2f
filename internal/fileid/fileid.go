// Package fileid provides deterministic document and chunk IDs derived from source names.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

const prefix = "doc:"

// DocID returns a stable document ID for the given source filename.
// Only the base name is hashed, so moving the data directory keeps IDs stable.
func DocID(source string) string {
	normalized := filepath.Base(filepath.Clean(source))
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:8])
}

// ChunkID returns the ID of the index-th chunk of a document.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s#%04d", docID, index)
}
