// Package cli formats command output for atrbot.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/atrbot/internal/index"
	"github.com/hyperjump/atrbot/internal/models"
	"github.com/hyperjump/atrbot/internal/rag"
	"github.com/hyperjump/atrbot/internal/search"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// snippetLen is the rune length of chunk previews in text output.
const snippetLen = 300

// ParseFormat returns the format named s, or an error.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes retrieved chunks to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d chunks in %dms\n\n", len(response.Results), response.QueryTime)
	for _, r := range response.Results {
		writeChunk(w, r)
	}
	return nil
}

func writeChunk(w io.Writer, r *models.RetrievedChunk) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", r.Rank, r.Score)
	if r.Chunk == nil {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "Source: %s (chunk %d)\n", r.Chunk.Source, r.Chunk.ChunkIndex)
	fmt.Fprintf(w, "\n%s\n\n", search.Snippet(r.Chunk.Content, snippetLen))
}

// WriteAnswer writes a generated answer. Sources are listed in text output
// only when showSources is set; JSON output always carries them.
func WriteAnswer(w io.Writer, answer *rag.Answer, format OutputFormat, showSources bool) error {
	if format == OutputJSON {
		out := *answer
		if !showSources {
			out.Chunks = nil
		}
		return writeJSON(w, out)
	}
	fmt.Fprintf(w, "🤖: %s\n", answer.Text)
	if showSources {
		for _, src := range answer.Sources {
			fmt.Fprintf(w, "Fuente: %s\n", src)
		}
	}
	return nil
}

// WriteStatus writes index information.
func WriteStatus(w io.Writer, manifest models.Manifest, stats index.Stats, diskBytes int64, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{
			"manifest":         manifest,
			"documents":        stats.Documents,
			"chunks":           stats.Chunks,
			"vectors":          stats.Vectors,
			"disk_usage_bytes": diskBytes,
		})
	}
	fmt.Fprintf(w, "Build:      %s (%s)\n", manifest.BuildID, manifest.BuiltAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Embedding:  %s (%d dims)\n", manifest.EmbeddingModel, manifest.Dimensions)
	fmt.Fprintf(w, "Index type: %s\n", manifest.IndexType)
	fmt.Fprintf(w, "Chunking:   size %d, overlap %d\n", manifest.ChunkSize, manifest.ChunkOverlap)
	fmt.Fprintf(w, "Documents:  %d\n", stats.Documents)
	fmt.Fprintf(w, "Chunks:     %d\n", stats.Chunks)
	fmt.Fprintf(w, "Vectors:    %d\n", stats.Vectors)
	fmt.Fprintf(w, "Disk usage: %d bytes\n", diskBytes)
	return nil
}
