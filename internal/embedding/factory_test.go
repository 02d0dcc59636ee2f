package embedding

import (
	"testing"

	"github.com/hyperjump/atrbot/internal/config"
)

func TestNew(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: "hashing", Dimensions: 128})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimensions() != 128 || e.Model() != HashingModel {
		t.Errorf("got %s/%d", e.Model(), e.Dimensions())
	}

	if _, err := New(config.EmbeddingConfig{Provider: "word2vec"}); err == nil {
		t.Error("expected error for unknown provider")
	}

	onnx := config.EmbeddingConfig{Provider: "onnx", ModelPath: "model.onnx", TokenizerPath: "missing-tokenizer.json", Dimensions: 768}
	if _, err := New(onnx); err == nil {
		t.Error("onnx embedder without its tokenizer.json should fail")
	}

	remote, err := New(config.EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", Dimensions: 1536, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("openai embedder: %v", err)
	}
	if remote.Model() != "text-embedding-3-small" {
		t.Errorf("Model = %s", remote.Model())
	}
}
