package embedding

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer produces the inputs of BERT-style encoders. Every slice has
// exactly maxTokens entries.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64, err error)
}

// WordPieceTokenizer encodes text with the vocabulary and normalization of a
// Hugging Face tokenizer.json, so the encoder sees the IDs it was trained on.
type WordPieceTokenizer struct {
	tk *tokenizer.Tokenizer
}

// LoadTokenizer reads the tokenizer.json shipped with a model.
func LoadTokenizer(path string) (*WordPieceTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer %s: %w", path, err)
	}
	return &WordPieceTokenizer{tk: tk}, nil
}

// Tokenize encodes text with [CLS]/[SEP], keeping [SEP] when the text is
// cut at maxTokens, and zero-pads the rest.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64, err error) {
	if maxTokens < 2 {
		maxTokens = 256
	}
	en, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to tokenize: %w", err)
	}
	ids := en.Ids
	if len(ids) > maxTokens {
		last := ids[len(ids)-1]
		ids = append(ids[:maxTokens-1:maxTokens-1], last)
	}

	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i, id := range ids {
		inputIDs[i] = int64(id)
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs, nil
}

// Fold lowercases text and strips diacritics, so "Cirugía" and "cirugia" compare equal.
func Fold(text string) string {
	// Chained transformers are stateful; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		return strings.ToLower(text)
	}
	return folded
}

// Terms returns the folded words of text, split on anything that is not a
// letter or digit.
func Terms(text string) []string {
	return strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() & 0x7fffffff)
}
