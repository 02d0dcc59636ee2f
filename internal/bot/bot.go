// Package bot runs the long-polling loop that answers chat messages.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hyperjump/atrbot/internal/conversation"
	"github.com/hyperjump/atrbot/internal/rag"
	"github.com/hyperjump/atrbot/internal/retry"
	"github.com/hyperjump/atrbot/internal/telegram"
	"github.com/hyperjump/atrbot/pkg/utils"
	"go.uber.org/zap"
)

// Transport receives updates and sends replies. *telegram.Client implements it.
type Transport interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Responder answers a question. *rag.Generator implements it.
type Responder interface {
	Generate(ctx context.Context, question string) (*rag.Answer, error)
}

const (
	startCommand = "/start"
	endCommand   = "/end"
)

// Bot polls the transport and replies to each message in order.
type Bot struct {
	transport Transport
	responder Responder
	sessions  *conversation.Sessions

	offset atomic.Int64

	pollTimeout  int
	pollInterval time.Duration
	policy       retry.Policy
	endKeywords  []string
	greeting     string
	goodbye      string
	fallback     string
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// WithPollTimeout sets the long-poll timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(b *Bot) { b.pollTimeout = seconds }
}

// WithPollInterval sets the pause between polls.
func WithPollInterval(d time.Duration) Option {
	return func(b *Bot) { b.pollInterval = d }
}

// WithRetryPolicy sets the policy for transport calls.
func WithRetryPolicy(p retry.Policy) Option {
	return func(b *Bot) { b.policy = p }
}

// WithEndKeywords sets the messages that end a chat's conversation.
// Matching is case-insensitive.
func WithEndKeywords(keywords ...string) Option {
	return func(b *Bot) { b.endKeywords = keywords }
}

// WithMessages sets the greeting, goodbye and fallback replies. Empty values
// keep the defaults.
func WithMessages(greeting, goodbye, fallback string) Option {
	return func(b *Bot) {
		if greeting != "" {
			b.greeting = greeting
		}
		if goodbye != "" {
			b.goodbye = goodbye
		}
		if fallback != "" {
			b.fallback = fallback
		}
	}
}

// WithClock replaces time.Now for transcript timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// New creates a bot.
func New(transport Transport, responder Responder, sessions *conversation.Sessions, opts ...Option) *Bot {
	b := &Bot{
		transport:    transport,
		responder:    responder,
		sessions:     sessions,
		pollTimeout:  100,
		pollInterval: time.Second,
		policy:       retry.DefaultPolicy(5, time.Second),
		endKeywords:  []string{endCommand, "salir"},
		greeting:     "Hola, soy tu asistente virtual. Pregúntame sobre tu procedimiento médico.",
		goodbye:      "Adiós. ¡Que tengas un buen día!",
		fallback:     "En este momento no puedo responder. Por favor, inténtalo de nuevo en unos minutos.",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = utils.OrNop(b.logger)
	return b
}

// Offset returns the next update id the bot will ask for.
func (b *Bot) Offset() int64 { return b.offset.Load() }

// Run polls until ctx is cancelled or the transport fails for good. Open
// conversations are saved before it returns. A nil error means a clean
// shutdown.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot started",
		zap.Int("poll_timeout", b.pollTimeout),
		zap.Duration("poll_interval", b.pollInterval))
	defer func() {
		if err := b.sessions.CloseAll(b.now()); err != nil {
			b.logger.Error("failed to save open conversations", zap.Error(err))
		}
		b.logger.Info("bot stopped", zap.Int64("offset", b.Offset()))
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := b.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Error("polling failed", zap.Error(err))
			return fmt.Errorf("failed to poll updates: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.pollInterval):
		}
	}
}

func (b *Bot) poll(ctx context.Context) error {
	var updates []telegram.Update
	err := retry.Do(ctx, b.policy, func(ctx context.Context) error {
		u, err := b.transport.GetUpdates(ctx, b.Offset(), b.pollTimeout)
		updates = u
		return err
	}, func(attempt int, err error, next time.Duration) {
		b.logger.Warn("getUpdates failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
			zap.Error(err))
	})
	if err != nil {
		return err
	}
	for _, u := range updates {
		if next := u.UpdateID + 1; next > b.Offset() {
			b.offset.Store(next)
		}
		b.handle(ctx, u)
	}
	return nil
}

func (b *Bot) handle(ctx context.Context, u telegram.Update) {
	chatID, ok := u.ChatID()
	text := strings.TrimSpace(u.Text())
	if !ok || text == "" {
		b.logger.Debug("skipping update", zap.Int64("update_id", u.UpdateID))
		return
	}
	now := b.now()

	switch {
	case isCommand(text, startCommand):
		b.sessions.Open(chatID, now)
		b.send(ctx, chatID, b.greeting)
	case b.isEnd(text):
		b.sessions.AppendExchange(chatID, text, b.goodbye, now)
		b.send(ctx, chatID, b.goodbye)
		if _, err := b.sessions.Close(chatID, now); err != nil {
			b.logger.Error("failed to save conversation", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	default:
		reply := b.answer(ctx, chatID, text)
		b.sessions.AppendExchange(chatID, text, reply, now)
		b.send(ctx, chatID, reply)
	}
}

func (b *Bot) answer(ctx context.Context, chatID int64, text string) string {
	answer, err := b.responder.Generate(ctx, text)
	if err != nil {
		b.logger.Error("failed to generate answer", zap.Int64("chat_id", chatID), zap.Error(err))
		return b.fallback
	}
	b.logger.Debug("answered",
		zap.Int64("chat_id", chatID),
		zap.Bool("refused", answer.Refused),
		zap.Strings("sources", answer.Sources))
	return answer.Text
}

// send delivers text piece by piece. Each piece has its own retry budget so
// a failure never repeats pieces the chat already received.
func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		b.logger.Warn("skipping empty reply", zap.Int64("chat_id", chatID))
		return
	}
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		err := retry.Do(ctx, b.policy, func(ctx context.Context) error {
			return b.transport.SendMessage(ctx, chatID, part)
		}, nil)
		if err != nil {
			b.logger.Error("failed to send message",
				zap.Int64("chat_id", chatID),
				zap.Int("part", i+1),
				zap.Int("parts", len(parts)),
				zap.Error(err))
			return
		}
	}
}

func (b *Bot) isEnd(text string) bool {
	for _, kw := range b.endKeywords {
		if strings.HasPrefix(kw, "/") {
			if isCommand(text, kw) {
				return true
			}
			continue
		}
		if strings.EqualFold(text, kw) {
			return true
		}
	}
	return false
}

// isCommand matches "/cmd" and "/cmd@botname", case-insensitively.
func isCommand(text, cmd string) bool {
	head, _, _ := strings.Cut(text, " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.EqualFold(head, cmd)
}
