// Package telegram adapts the Bot API library to the long-polling bot:
// calls take a context, updates are converted to local types and errors
// are marked permanent or retryable for the retry package.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hyperjump/atrbot/pkg/utils"
	"go.uber.org/zap"
)

// MaxMessageLength is the Bot API limit on message text, in characters.
const MaxMessageLength = 4096

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// Client calls the Bot API. Errors are *APIError values already marked
// permanent or retryable for the retry package.
type Client struct {
	api          *tgbotapi.BotAPI
	baseURL      string
	httpClient   tgbotapi.HTTPClient
	maxRetryWait time.Duration
	logger       *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithBaseURL points the client at another Bot API server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithMaxRetryWait caps retry_after hints from the server.
func WithMaxRetryWait(d time.Duration) Option {
	return func(c *Client) { c.maxRetryWait = d }
}

// NewClient creates a client for the bot identified by token. No request
// is made; use GetMe to check the token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultAPIURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	c.api = &tgbotapi.BotAPI{Token: token, Client: c.httpClient, Buffer: 100}
	c.api.SetAPIEndpoint(c.baseURL + "/bot%s/%s")
	return c
}

// GetUpdates long-polls for updates with id >= offset. timeout is in seconds.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	var raw []tgbotapi.Update
	err := c.do(ctx, "getUpdates", func(api *tgbotapi.BotAPI) error {
		var err error
		raw, err = api.GetUpdates(tgbotapi.UpdateConfig{
			Offset:         int(offset),
			Timeout:        timeout,
			AllowedUpdates: []string{"message"},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	updates := make([]Update, 0, len(raw))
	for _, u := range raw {
		updates = append(updates, fromAPIUpdate(u))
	}
	return updates, nil
}

// SplitMessage cuts text into pieces the Bot API accepts.
func SplitMessage(text string) []string {
	return utils.SplitRunes(text, MaxMessageLength)
}

// SendMessage sends text to chatID, one message per SplitMessage piece.
// Pieces are not retried here; callers retrying a failure should send
// piece by piece so earlier pieces are not repeated.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	for _, part := range SplitMessage(text) {
		err := c.do(ctx, "sendMessage", func(api *tgbotapi.BotAPI) error {
			_, err := api.Send(tgbotapi.NewMessage(chatID, part))
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// GetMe returns the bot's own user. Used to check the token at startup.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me tgbotapi.User
	err := c.do(ctx, "getMe", func(api *tgbotapi.BotAPI) error {
		var err error
		me, err = api.GetMe()
		return err
	})
	if err != nil {
		return nil, err
	}
	return fromAPIUser(&me), nil
}

// do runs call against a copy of the library client whose requests carry
// ctx, then classifies any failure.
func (c *Client) do(ctx context.Context, method string, call func(*tgbotapi.BotAPI) error) error {
	bound := &boundClient{ctx: ctx, client: c.httpClient}
	api := *c.api
	api.Client = bound
	err := call(&api)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	apiErr := toAPIError(method, bound.status, err)
	if apiErr.Err == nil {
		c.logger.Debug("telegram api error",
			zap.String("method", method),
			zap.Int("code", apiErr.Code),
			zap.String("description", apiErr.Description))
	}
	return classify(apiErr, c.maxRetryWait)
}

// boundClient attaches ctx to each request and records the last HTTP status.
type boundClient struct {
	ctx    context.Context
	client tgbotapi.HTTPClient
	status int
}

func (b *boundClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := b.client.Do(req.WithContext(b.ctx))
	if resp != nil {
		b.status = resp.StatusCode
	}
	return resp, err
}

// toAPIError converts a library failure. status is the HTTP status seen,
// 0 when no response arrived.
func toAPIError(method string, status int, err error) *APIError {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		apiErr := &APIError{
			Method:      method,
			StatusCode:  status,
			Code:        tgErr.Code,
			Description: tgErr.Message,
		}
		if tgErr.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(tgErr.RetryAfter) * time.Second
		}
		return apiErr
	}
	if status != 0 {
		return &APIError{
			Method:      method,
			StatusCode:  status,
			Code:        status,
			Description: "undecodable response",
		}
	}
	// url.Error carries the endpoint, which contains the token.
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	return &APIError{Method: method, Err: err}
}
