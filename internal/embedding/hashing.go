package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/atrbot/pkg/utils"
)

// HashingModel identifies vectors produced by HashingEmbedder.
const HashingModel = "hashing-bow-v1"

// stopwords are dropped before hashing so function words do not dominate similarity.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		// Spanish
		"a", "al", "algo", "ante", "como", "con", "cual", "de", "del", "desde", "donde", "durante",
		"e", "el", "ella", "ellos", "en", "entre", "era", "es", "esa", "ese", "eso", "esta", "este",
		"esto", "fue", "ha", "hay", "la", "las", "le", "les", "lo", "los", "mas", "me", "mi", "mis",
		"muy", "ni", "no", "nos", "o", "otra", "otro", "para", "pero", "por", "que", "se", "segun",
		"ser", "si", "sin", "sobre", "su", "sus", "tambien", "te", "tu", "tus", "u", "un", "una",
		"unas", "uno", "unos", "y", "ya", "yo",
		// English
		"an", "and", "are", "as", "at", "be", "by", "for", "from", "in", "is", "it", "of", "on",
		"or", "the", "this", "to", "was", "with",
	} {
		stopwords[w] = struct{}{}
	}
}

// HashingEmbedder is a deterministic bag-of-words embedder based on feature
// hashing. It needs no model files or network access.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a hashing embedder with the given dimension.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed hashes each non-stopword term of text into a signed bucket and
// normalizes the result. Text without terms yields the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dimensions)
	for _, term := range Terms(text) {
		if _, ok := stopwords[term]; ok {
			continue
		}
		h := HashString(term)
		idx := h % e.dimensions
		if (h/e.dimensions)%2 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	utils.Normalize(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int { return e.dimensions }

// Model returns HashingModel.
func (e *HashingEmbedder) Model() string { return HashingModel }

// Close is a no-op.
func (e *HashingEmbedder) Close() error { return nil }
