// Package search retrieves the chunks most relevant to a query.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/atrbot/internal/embedding"
	"github.com/hyperjump/atrbot/internal/indexer"
	"github.com/hyperjump/atrbot/internal/models"
	"github.com/hyperjump/atrbot/pkg/utils"
	"go.uber.org/zap"
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = models.ErrEmptyQuery

// Searcher finds the chunks nearest to a query vector. *index.Index implements it.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]*models.RetrievedChunk, error)
}

// Retriever embeds queries and searches the index with them.
type Retriever struct {
	embedder embedding.Embedder
	index    Searcher
	defaultK int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a retriever. defaultK is used when a caller asks for k <= 0.
func NewRetriever(embedder embedding.Embedder, index Searcher, defaultK int, opts ...Option) *Retriever {
	r := &Retriever{embedder: embedder, index: index, defaultK: defaultK}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	return r
}

// Retrieve returns up to k chunks ranked by descending similarity to query.
// Ties keep index insertion order. Returns ErrEmptyQuery for a blank query.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]*models.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = r.defaultK
	}
	vec, err := r.embedder.Embed(ctx, indexer.Preprocess(query))
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	results, err := r.index.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	r.logger.Debug("retrieved chunks",
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.String("query", utils.Truncate(query, 80)))
	return results, nil
}

// Search runs a validated retrieval request and reports its duration.
func (r *Retriever) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := query.Validate(r.defaultK); err != nil {
		return nil, err
	}
	results, err := r.Retrieve(ctx, query.Query, query.K)
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Query:     query.Query,
		Results:   results,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}
