// Package extract provides text extraction from the PDF corpus.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/atrbot/internal/fileid"
	"github.com/hyperjump/atrbot/internal/models"
	"github.com/hyperjump/atrbot/pkg/utils"
	"go.uber.org/zap"
)

// ErrDirectoryNotFound is returned by ExtractDir when the corpus directory does not exist.
var ErrDirectoryNotFound = errors.New("directory not found")

// FileError records a single file that could not be extracted.
type FileError struct {
	Source string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Result is the outcome of extracting a directory.
// Documents are ordered by file name; Failed lists files that were skipped.
type Result struct {
	Documents []*models.Document
	Failed    []*FileError
}

// Extractor extracts plain text from PDF files.
type Extractor struct {
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used to report skipped files.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// ExtractDir extracts every file with a .pdf extension (any case) directly
// inside dir. Subdirectories are not visited. A file that cannot be read or
// parsed is recorded in Result.Failed and the batch continues.
// Returns an error wrapping ErrDirectoryNotFound if dir does not exist.
func (e *Extractor) ExtractDir(ctx context.Context, dir string) (*Result, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !IsPDF(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	res := &Result{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := e.ExtractFile(filepath.Join(dir, name))
		if err != nil {
			e.logger.Warn("skipping unreadable document", zap.String("source", name), zap.Error(err))
			res.Failed = append(res.Failed, &FileError{Source: name, Err: err})
			continue
		}
		e.logger.Debug("extracted document",
			zap.String("source", name),
			zap.Int("pages", doc.Pages),
			zap.Int("chars", len([]rune(doc.Text))))
		res.Documents = append(res.Documents, doc)
	}
	return res, nil
}

// ExtractFile reads the PDF at path and returns it as a Document whose
// Source is the base file name.
func (e *Extractor) ExtractFile(path string) (*models.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	text, pages, err := extractPDF(content)
	if err != nil {
		return nil, err
	}
	source := filepath.Base(path)
	return &models.Document{
		ID:     fileid.DocID(source),
		Source: source,
		Text:   text,
		Pages:  pages,
	}, nil
}

// IsPDF reports whether name has a .pdf extension, ignoring case.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
