package embedding

import (
	"fmt"

	"github.com/hyperjump/atrbot/internal/config"
)

// New creates the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "onnx":
		tok, err := LoadTokenizer(cfg.TokenizerPath)
		if err != nil {
			return nil, err
		}
		e, err := NewONNXEmbedder(cfg.ModelPath, tok, cfg.Model, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "openai":
		e, err := NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dimensions, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "ollama":
		e, err := NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "hashing":
		return NewHashingEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
