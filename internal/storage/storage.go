// Package storage persists the chunk text, document list and manifest of an index.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/atrbot/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines document, chunk and manifest persistence operations.
type Storage interface {
	// Document operations
	CreateDocuments(ctx context.Context, docs []*models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]*models.Document, error)

	// Chunk operations
	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error)
	ListChunks(ctx context.Context) ([]*models.Chunk, error)

	// Manifest
	SaveManifest(ctx context.Context, m *models.Manifest) error
	GetManifest(ctx context.Context) (*models.Manifest, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
