// Package llm talks to the remote language model that writes the answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperjump/atrbot/internal/config"
	"github.com/hyperjump/atrbot/internal/retry"
	"go.uber.org/zap"
)

var (
	// ErrEmptyCompletion is returned when the model answers with no text.
	ErrEmptyCompletion = errors.New("model returned an empty completion")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("language model unavailable")
)

// Provider completes a single prompt.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// NewProvider builds the provider named by cfg wrapped in rate limiting,
// a circuit breaker and the retry policy.
func NewProvider(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*GuardedProvider, error) {
	var (
		base Provider
		err  error
	)
	switch strings.ToLower(cfg.Provider) {
	case "groq", "openai", "":
		name := strings.ToLower(cfg.Provider)
		if name == "" {
			name = "groq"
		}
		base, err = NewOpenAIProvider(name, cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Provider, err)
	}
	return NewGuardedProvider(base, GuardOptions{
		RequestsPerMinute: cfg.RequestsPerMinute,
		Timeout:           cfg.Timeout,
		Policy:            retry.DefaultPolicy(cfg.MaxAttempts, cfg.RetryDelay),
	}, WithLogger(logger)), nil
}

func closeProvider(p Provider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var statusCodeRe = regexp.MustCompile(`status code: (\d{3})`)

// classify marks client errors other than 408 and 429 as permanent.
func classify(err error) error {
	m := statusCodeRe.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	code, _ := strconv.Atoi(m[1])
	if code >= 400 && code < 500 && code != 408 && code != 429 {
		return retry.Permanent(err)
	}
	return err
}
