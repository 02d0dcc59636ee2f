package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/atrbot/internal/retry"
	"github.com/hyperjump/atrbot/pkg/utils"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GuardOptions configures a GuardedProvider.
type GuardOptions struct {
	// RequestsPerMinute of zero or less disables rate limiting.
	RequestsPerMinute int
	// Timeout bounds each attempt. Zero disables it.
	Timeout time.Duration
	Policy  retry.Policy
	// BreakerThreshold is the number of consecutive failures that opens the
	// breaker. Defaults to 5.
	BreakerThreshold uint32
	// BreakerCooldown is how long the breaker stays open. Defaults to 60s.
	BreakerCooldown time.Duration
}

// GuardedProvider wraps a Provider with a rate limiter, a circuit breaker and
// bounded retries.
type GuardedProvider struct {
	inner   Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	policy  retry.Policy
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a GuardedProvider.
type Option func(*GuardedProvider)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *GuardedProvider) { g.logger = l }
}

// NewGuardedProvider wraps inner.
func NewGuardedProvider(inner Provider, opts GuardOptions, options ...Option) *GuardedProvider {
	g := &GuardedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Inf, 1),
		policy:  opts.Policy,
		timeout: opts.Timeout,
	}
	for _, opt := range options {
		opt(g)
	}
	g.logger = utils.OrNop(g.logger)

	if opts.RequestsPerMinute > 0 {
		burst := opts.RequestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), burst)
	}
	threshold := opts.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	cooldown := opts.BreakerCooldown
	if cooldown == 0 {
		cooldown = 60 * time.Second
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Rejected requests (4xx) do not count against the provider.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || retry.IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return g
}

// Name implements Provider.
func (g *GuardedProvider) Name() string { return g.inner.Name() }

// Complete implements Provider. Errors are returned only after the retry
// policy gives up or a permanent error is seen.
func (g *GuardedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	var text string
	err := retry.Do(ctx, g.policy, func(ctx context.Context) error {
		if err := g.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		out, err := g.breaker.Execute(func() (interface{}, error) {
			return g.attempt(ctx, prompt)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return retry.Permanent(fmt.Errorf("%w: %v", ErrUnavailable, err))
		}
		if err != nil {
			return err
		}
		text = out.(string)
		return nil
	}, func(attempt int, err error, next time.Duration) {
		g.logger.Warn("model call failed, retrying",
			zap.String("provider", g.inner.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
			zap.Error(err))
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (g *GuardedProvider) attempt(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.inner.Complete(ctx, prompt)
}

// State reports the circuit breaker state.
func (g *GuardedProvider) State() string {
	return g.breaker.State().String()
}

// Close releases the wrapped provider if it holds resources.
func (g *GuardedProvider) Close() error {
	return closeProvider(g.inner)
}
