// Package indexer builds the retrieval index: chunking, embedding and storing the corpus.
package indexer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/atrbot/internal/fileid"
	"github.com/hyperjump/atrbot/internal/models"
)

// DefaultSeparators are tried in order when choosing where to cut a chunk.
// A hard cut at the size limit is the final fallback.
var DefaultSeparators = []string{"\n\n", "\n", " "}

// Chunker splits document text into overlapping character windows.
// Sizes are counted in runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   [][]rune
}

// NewChunker creates a chunker. size must be positive and overlap must be in [0, size).
// Empty separators are ignored; a nil slice selects DefaultSeparators.
func NewChunker(chunkSize, chunkOverlap int, separators []string) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	if separators == nil {
		separators = DefaultSeparators
	}
	c := &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
	for _, sep := range separators {
		if sep != "" {
			c.separators = append(c.separators, []rune(sep))
		}
	}
	return c, nil
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the number of runes shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Chunk splits a document into ordered chunks tagged with its source.
// Consecutive chunks share exactly Overlap runes. Empty text yields no chunks.
func (c *Chunker) Chunk(doc *models.Document) []*models.Chunk {
	runes := []rune(doc.Text)
	if len(runes) == 0 {
		return nil
	}
	var chunks []*models.Chunk
	start := 0
	for {
		end := len(runes)
		last := end-start <= c.chunkSize
		if !last {
			end = c.cutPoint(runes, start)
		}
		index := len(chunks)
		chunks = append(chunks, &models.Chunk{
			ID:         fileid.ChunkID(doc.ID, index),
			DocumentID: doc.ID,
			Source:     doc.Source,
			Content:    string(runes[start:end]),
			ChunkIndex: index,
			Start:      start,
		})
		if last {
			return chunks
		}
		start = end - c.chunkOverlap
	}
}

// ChunkAll chunks each document in order. Chunks never span two documents.
func (c *Chunker) ChunkAll(docs []*models.Document) []*models.Chunk {
	var all []*models.Chunk
	for _, doc := range docs {
		all = append(all, c.Chunk(doc)...)
	}
	return all
}

// cutPoint returns the exclusive end of the window starting at start. It is
// the end of the last occurrence of the first separator found inside
// (start+overlap, start+size], or start+size when none matches. The lower
// bound keeps every window advancing past the overlap.
func (c *Chunker) cutPoint(runes []rune, start int) int {
	lo := start + c.chunkOverlap
	hi := start + c.chunkSize
	for _, sep := range c.separators {
		for i := hi - len(sep); i >= start && i+len(sep) > lo; i-- {
			if hasPrefixAt(runes, i, sep) {
				return i + len(sep)
			}
		}
	}
	return hi
}

func hasPrefixAt(runes []rune, i int, sep []rune) bool {
	if i+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}

// Reconstruct reverses Chunk for the chunks of one document: it drops the
// first overlap runes of every chunk after the first and concatenates.
func Reconstruct(chunks []*models.Chunk, overlap int) string {
	var b strings.Builder
	for i, ch := range chunks {
		if i == 0 {
			b.WriteString(ch.Content)
			continue
		}
		runes := []rune(ch.Content)
		if overlap < len(runes) {
			b.WriteString(string(runes[overlap:]))
		}
	}
	return b.String()
}
