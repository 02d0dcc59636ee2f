package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/atrbot/pkg/utils"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// RemoteEmbedder calls an embeddings HTTP API through langchaingo.
type RemoteEmbedder struct {
	client     embeddings.Embedder
	model      string
	dimensions int
	cache      *QueryCache
}

// NewOpenAIEmbedder returns an embedder for an OpenAI-compatible /embeddings endpoint.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dimensions, cacheSize int) (*RemoteEmbedder, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithModel(model),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	client, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return newRemoteEmbedder(client, model, dimensions, cacheSize), nil
}

// NewOllamaEmbedder returns an embedder backed by a local Ollama server.
func NewOllamaEmbedder(serverURL, model string, dimensions, cacheSize int) (*RemoteEmbedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	client, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return newRemoteEmbedder(client, model, dimensions, cacheSize), nil
}

func newRemoteEmbedder(client embeddings.Embedder, model string, dimensions, cacheSize int) *RemoteEmbedder {
	return &RemoteEmbedder{
		client:     client,
		model:      model,
		dimensions: dimensions,
		cache:      NewQueryCache(cacheSize),
	}
}

// Embed returns the embedding for text, using the cache when available.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.cache.Resolve(ctx, text, func(ctx context.Context) ([]float32, error) {
		vec, err := e.client.EmbedQuery(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		return e.check(vec)
	})
}

// EmbedBatch embeds texts in one request per provider batch.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.client.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(vecs), len(texts))
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		if out[i], err = e.check(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// check copies and normalizes a provider vector after verifying its dimension.
func (e *RemoteEmbedder) check(v []float32) ([]float32, error) {
	if len(v) != e.dimensions {
		return nil, fmt.Errorf("model %s returned %d dimensions, configured %d", e.model, len(v), e.dimensions)
	}
	out := make([]float32, len(v))
	copy(out, v)
	utils.Normalize(out)
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *RemoteEmbedder) Dimensions() int { return e.dimensions }

// Model returns the model identifier.
func (e *RemoteEmbedder) Model() string { return e.model }

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *RemoteEmbedder) Close() error { return nil }
