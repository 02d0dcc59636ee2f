package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/atrbot/internal/embedding"
	"github.com/hyperjump/atrbot/internal/extract"
	"github.com/hyperjump/atrbot/internal/index"
	"github.com/hyperjump/atrbot/internal/models"
	"github.com/hyperjump/atrbot/internal/vector"
	"github.com/hyperjump/atrbot/pkg/utils"
	"go.uber.org/zap"
)

// ErrNothingIndexed is returned when a build produces no chunks.
var ErrNothingIndexed = errors.New("no indexable text found")

const defaultBatchSize = 32

// Report summarizes an index build.
type Report struct {
	Documents int                  `json:"documents"`
	Chunks    int                  `json:"chunks"`
	Skipped   []string             `json:"skipped,omitempty"` // sources with no text
	Dropped   []string             `json:"dropped,omitempty"` // chunk IDs whose embedding was all zeros
	Failed    []*extract.FileError `json:"-"`
	Duration  time.Duration        `json:"duration"`
}

// Indexer builds an index from a directory of PDFs: extract, chunk, embed, store.
type Indexer struct {
	extractor *extract.Extractor
	chunker   *Chunker
	embedder  embedding.Embedder
	indexType string
	batchSize int
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for progress output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(ix *Indexer) { ix.logger = l }
}

// WithIndexType selects the vector backend ("memory" or "chromem").
func WithIndexType(t string) IndexerOption {
	return func(ix *Indexer) { ix.indexType = t }
}

// WithBatchSize sets how many chunks are embedded per EmbedBatch call.
func WithBatchSize(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(extractor *extract.Extractor, chunker *Chunker, embedder embedding.Embedder, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		indexType: string(vector.IndexTypeMemory),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.logger = utils.OrNop(ix.logger)
	return ix
}

// Build extracts every PDF in dataDir and indexes it. Files that fail to
// extract are listed in the report and do not stop the build.
func (ix *Indexer) Build(ctx context.Context, dataDir string) (*index.Index, *Report, error) {
	start := time.Now()
	res, err := ix.extractor.ExtractDir(ctx, dataDir)
	if err != nil {
		return nil, nil, err
	}
	idx, report, err := ix.BuildFromDocuments(ctx, res.Documents)
	if report != nil {
		report.Failed = res.Failed
		report.Duration = time.Since(start)
	}
	return idx, report, err
}

// BuildFromDocuments indexes already extracted documents in order.
// Documents whose text is blank are skipped.
func (ix *Indexer) BuildFromDocuments(ctx context.Context, docs []*models.Document) (*index.Index, *Report, error) {
	start := time.Now()
	report := &Report{}

	vecs, err := vector.NewVectorIndex(ix.indexType, ix.embedder.Dimensions())
	if err != nil {
		return nil, report, err
	}
	idx := index.New(vecs, models.Manifest{
		EmbeddingModel: ix.embedder.Model(),
		ChunkSize:      ix.chunker.Size(),
		ChunkOverlap:   ix.chunker.Overlap(),
	})

	var kept []*models.Document
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			ix.logger.Warn("skipping document without text", zap.String("source", doc.Source))
			report.Skipped = append(report.Skipped, doc.Source)
			continue
		}
		kept = append(kept, doc)
	}
	idx.AddDocuments(kept...)

	chunks := ix.chunker.ChunkAll(kept)
	if len(chunks) == 0 {
		return nil, report, ErrNothingIndexed
	}

	for lo := 0; lo < len(chunks); lo += ix.batchSize {
		hi := lo + ix.batchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}
		batch := chunks[lo:hi]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = Preprocess(c.Content)
		}
		embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, report, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(batch) {
			return nil, report, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(batch))
		}
		keepChunks, keepVecs := batch[:0:0], embeddings[:0:0]
		for i, v := range embeddings {
			// A zero vector has no direction to compare; the hashing
			// model yields one for stopword-only text.
			if utils.Norm(v) == 0 {
				ix.logger.Warn("dropping chunk with empty embedding",
					zap.String("chunk", batch[i].ID), zap.String("source", batch[i].Source))
				report.Dropped = append(report.Dropped, batch[i].ID)
				continue
			}
			keepChunks = append(keepChunks, batch[i])
			keepVecs = append(keepVecs, v)
		}
		if len(keepChunks) > 0 {
			if err := idx.Add(ctx, keepChunks, keepVecs); err != nil {
				return nil, report, err
			}
			report.Chunks += len(keepChunks)
		}
		ix.logger.Debug("indexed batch", zap.Int("chunks", hi), zap.Int("total", len(chunks)))
	}
	if report.Chunks == 0 {
		return nil, report, ErrNothingIndexed
	}

	report.Documents = len(kept)
	report.Duration = time.Since(start)
	ix.logger.Info("index built",
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.String("model", ix.embedder.Model()),
		zap.Duration("duration", report.Duration))
	return idx, report, nil
}
