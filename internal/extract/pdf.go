package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF returns the text of every page joined with "\n" and the page
// count. A page with no text or that fails to decode contributes "".
func extractPDF(content []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("malformed PDF: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	texts := make([]string, numPages)
	for i := 0; i < numPages; i++ {
		texts[i] = pageText(r, i+1)
	}
	return strings.Join(texts, "\n"), numPages, nil
}

// pageText guards against the reader panicking on malformed content streams.
func pageText(r *pdf.Reader, num int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	page := r.Page(num)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
