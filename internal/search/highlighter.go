package search

import (
	"sort"

	"github.com/hyperjump/atrbot/internal/indexer"
	"github.com/hyperjump/atrbot/internal/models"
	"github.com/hyperjump/atrbot/pkg/utils"
)

// Snippet returns chunk text on one line, truncated to maxLen runes.
// maxLen <= 0 disables truncation.
func Snippet(content string, maxLen int) string {
	text := indexer.Preprocess(content)
	if maxLen <= 0 {
		return text
	}
	return utils.Truncate(text, maxLen)
}

// Sources returns the distinct source files of results, best-ranked first.
func Sources(results []*models.RetrievedChunk) []string {
	best := make(map[string]int)
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		if rank, ok := best[r.Chunk.Source]; !ok || r.Rank < rank {
			best[r.Chunk.Source] = r.Rank
		}
	}
	sources := make([]string, 0, len(best))
	for s := range best {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool {
		if best[sources[i]] != best[sources[j]] {
			return best[sources[i]] < best[sources[j]]
		}
		return sources[i] < sources[j]
	})
	return sources
}
