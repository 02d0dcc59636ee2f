package indexer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// invisible drops characters PDF extraction leaves inside words.
var invisible = strings.NewReplacer(
	"\u00ad", "", // soft hyphen
	"\u200b", "", // zero width space
	"\ufeff", "", // byte order mark
)

// Preprocess prepares text for embedding: NFC composition, invisible
// characters removed, and whitespace runs (PDF line breaks included)
// collapsed to one space. Stored chunk text is never preprocessed; queries
// go through the same function so both sides of a comparison match.
func Preprocess(text string) string {
	text = invisible.Replace(norm.NFC.String(text))
	return strings.Join(strings.Fields(text), " ")
}
