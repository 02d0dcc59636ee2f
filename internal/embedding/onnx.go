//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/atrbot/pkg/utils"
	ort "github.com/yalue/onnxruntime_go"
)

// Input and output names of BERT-family sentence encoders exported to ONNX.
var (
	onnxInputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	onnxOutputNames = []string{"pooler_output"}
)

// bindings are the tensors bound to a session. Each run overwrites their data.
type bindings struct {
	ids, mask, types *ort.Tensor[int64]
	pooled           *ort.Tensor[float32]
}

func newBindings(seqLen, dimensions int) (*bindings, error) {
	b := &bindings{}
	in := ort.NewShape(1, int64(seqLen))
	var err error
	if b.ids, err = ort.NewEmptyTensor[int64](in); err != nil {
		return nil, fmt.Errorf("allocate input_ids: %w", err)
	}
	if b.mask, err = ort.NewEmptyTensor[int64](in); err != nil {
		b.destroy()
		return nil, fmt.Errorf("allocate attention_mask: %w", err)
	}
	if b.types, err = ort.NewEmptyTensor[int64](in); err != nil {
		b.destroy()
		return nil, fmt.Errorf("allocate token_type_ids: %w", err)
	}
	if b.pooled, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dimensions))); err != nil {
		b.destroy()
		return nil, fmt.Errorf("allocate output: %w", err)
	}
	return b, nil
}

func (b *bindings) inputs() []ort.ArbitraryTensor {
	return []ort.ArbitraryTensor{b.ids, b.mask, b.types}
}

func (b *bindings) destroy() error {
	var errs []error
	if b.ids != nil {
		errs = append(errs, b.ids.Destroy())
	}
	if b.mask != nil {
		errs = append(errs, b.mask.Destroy())
	}
	if b.types != nil {
		errs = append(errs, b.types.Destroy())
	}
	if b.pooled != nil {
		errs = append(errs, b.pooled.Destroy())
	}
	*b = bindings{}
	return errors.Join(errs...)
}

// ONNXEmbedder runs a local sentence encoder through ONNX Runtime. It needs
// CGO and the onnxruntime shared library at run time.
type ONNXEmbedder struct {
	mu         sync.Mutex
	session    *ort.AdvancedSession
	io         *bindings
	tokenizer  Tokenizer
	model      string
	dimensions int
	maxTokens  int
	cache      *QueryCache
}

// NewONNXEmbedder loads the encoder at modelPath. tok must be the tokenizer
// the model was exported with. model is the name written to index manifests.
func NewONNXEmbedder(modelPath string, tok Tokenizer, model string, dimensions, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	if tok == nil {
		return nil, errors.New("ONNX embedder needs a tokenizer")
	}
	if maxTokens < 2 {
		maxTokens = 256
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	io, err := newBindings(maxTokens, dimensions)
	if err != nil {
		return nil, err
	}
	session, err := ort.NewAdvancedSession(modelPath,
		onnxInputNames, onnxOutputNames,
		io.inputs(), []ort.ArbitraryTensor{io.pooled}, nil)
	if err != nil {
		io.destroy()
		return nil, fmt.Errorf("failed to open ONNX model %s: %w", modelPath, err)
	}

	return &ONNXEmbedder{
		session:    session,
		io:         io,
		tokenizer:  tok,
		model:      model,
		dimensions: dimensions,
		maxTokens:  maxTokens,
		cache:      NewQueryCache(cacheSize),
	}, nil
}

// Embed returns the unit-length embedding of text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.cache.Resolve(ctx, text, func(ctx context.Context) ([]float32, error) {
		return e.infer(ctx, text)
	})
}

func (e *ONNXEmbedder) infer(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, errors.New("ONNX embedder is closed")
	}

	ids, mask, types, err := e.tokenizer.Tokenize(text, e.maxTokens)
	if err != nil {
		return nil, err
	}
	copy(e.io.ids.GetData(), ids)
	copy(e.io.mask.GetData(), mask)
	copy(e.io.types.GetData(), types)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := make([]float32, e.dimensions)
	copy(vec, e.io.pooled.GetData())
	utils.Normalize(vec)
	return vec, nil
}

// EmbedBatch embeds texts one at a time; the session holds a single sequence.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.infer(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (e *ONNXEmbedder) Dimensions() int { return e.dimensions }
func (e *ONNXEmbedder) Model() string   { return e.model }

// Close releases the session and its tensors. It is safe to call twice.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return errors.Join(err, e.io.destroy())
}
