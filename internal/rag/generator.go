// Package rag answers questions from retrieved document chunks.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/atrbot/internal/config"
	"github.com/hyperjump/atrbot/internal/llm"
	"github.com/hyperjump/atrbot/internal/models"
	"github.com/hyperjump/atrbot/internal/search"
	"github.com/hyperjump/atrbot/pkg/utils"
	"go.uber.org/zap"
)

// Retriever returns the chunks most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]*models.RetrievedChunk, error)
}

// Answer is a generated reply and the chunks it was grounded on.
type Answer struct {
	Text    string                   `json:"answer"`
	Sources []string                 `json:"sources"`
	Chunks  []*models.RetrievedChunk `json:"chunks,omitempty"`
	// Refused is set when the reply is the canned refusal sentence.
	Refused bool  `json:"refused"`
	TookMs  int64 `json:"took_ms"`
}

// Generator retrieves context for a question and asks the model to answer it.
type Generator struct {
	retriever Retriever
	provider  llm.Provider
	topK      int
	minScore  float64
	logger    *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithTopK sets how many chunks are stuffed into the prompt. Zero keeps the
// retriever's default.
func WithTopK(k int) Option {
	return func(g *Generator) { g.topK = k }
}

// WithMinScore sets the best-hit similarity at or below which the model is
// not called and the refusal is returned.
func WithMinScore(s float64) Option {
	return func(g *Generator) { g.minScore = s }
}

// NewGenerator creates a generator.
func NewGenerator(retriever Retriever, provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{retriever: retriever, provider: provider}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = utils.OrNop(g.logger)
	return g
}

// Generate answers question. Provider failures are returned as errors after
// the provider's own retries; callers decide what to show the user.
func (g *Generator) Generate(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.ErrEmptyQuery
	}
	prompt := BuildPrompt(question)

	chunks, err := g.retriever.Retrieve(ctx, prompt, g.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(chunks) == 0 || chunks[0].Score <= g.minScore {
		g.logger.Debug("no relevant context, refusing",
			zap.Int("chunks", len(chunks)),
			zap.String("question", utils.Truncate(question, 80)))
		return &Answer{Text: config.Refusal, Refused: true, TookMs: time.Since(start).Milliseconds()}, nil
	}

	input, err := StuffContext(prompt, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}
	text, err := g.provider.Complete(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	text = strings.TrimSpace(text)

	answer := &Answer{
		Text:    text,
		Sources: search.Sources(chunks),
		Chunks:  chunks,
		Refused: strings.Contains(text, config.Refusal),
		TookMs:  time.Since(start).Milliseconds(),
	}
	g.logger.Info("answer generated",
		zap.String("provider", g.provider.Name()),
		zap.Int("chunks", len(chunks)),
		zap.Float64("top_score", chunks[0].Score),
		zap.Bool("refused", answer.Refused),
		zap.Int64("took_ms", answer.TookMs))
	return answer, nil
}
