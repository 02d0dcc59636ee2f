package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// TimestampLayout names transcript files: conversation_YYYYMMDD_HHMMSS.json.
const TimestampLayout = "20060102_150405"

// Writer persists transcripts under a directory, one subdirectory per chat.
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir. The directory is created on
// first save.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the root directory.
func (w *Writer) Dir() string { return w.dir }

// Save writes rec as indented UTF-8 JSON and returns the file path. A file
// from the same second is never overwritten; a _2, _3, ... suffix is added.
func (w *Writer) Save(chatID int64, rec *Record, now time.Time) (string, error) {
	dir := filepath.Join(w.dir, strconv.FormatInt(chatID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create conversation dir: %w", err)
	}
	base := "conversation_" + now.Format(TimestampLayout)

	for n := 1; ; n++ {
		name := base + ".json"
		if n > 1 {
			name = fmt.Sprintf("%s_%d.json", base, n)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		enc := json.NewEncoder(f)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", path, err)
		}
		return path, nil
	}
}
