package llm

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIProvider calls an OpenAI-compatible chat completions API. Groq is
// reached this way through its /openai/v1 base URL.
type OpenAIProvider struct {
	name        string
	client      llms.Model
	temperature float64
	maxTokens   int
}

// NewOpenAIProvider creates a provider for the given endpoint and model.
func NewOpenAIProvider(name, baseURL, apiKey, model string, temperature float64, maxTokens int) (*OpenAIProvider, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &OpenAIProvider{name: name, client: client, temperature: temperature, maxTokens: maxTokens}, nil
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return p.name }

// Complete sends prompt as a single user message.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}
	callOpts := []llms.CallOption{llms.WithTemperature(p.temperature)}
	if p.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(p.maxTokens))
	}
	resp, err := p.client.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Content, nil
}
