// Package models defines core data structures for documents, chunks, and retrieval results.
package models

// Document is the extracted plain text of one source PDF.
type Document struct {
	ID     string `json:"id"`
	Source string `json:"source"` // base filename of the PDF
	Text   string `json:"text"`
	Pages  int    `json:"pages"`
}

// Chunk is a contiguous window of a document's text. Start is the rune
// offset of the window inside the document; Seq is the insertion order
// inside the index and is assigned when the chunk is added.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Content    string `json:"content"`
	ChunkIndex int    `json:"chunk_index"`
	Start      int    `json:"start"`
	Seq        int    `json:"seq"`
}

// Metadata returns the chunk metadata exposed alongside retrieved text.
func (c *Chunk) Metadata() map[string]string {
	return map[string]string{"source": c.Source}
}
