package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/atrbot/internal/retry"
)

// ErrEmptyMessage is returned when asked to send blank text.
var ErrEmptyMessage = errors.New("message text is empty")

// APIError is a failed Bot API call. Err is set for network failures.
type APIError struct {
	Method      string
	StatusCode  int
	Code        int
	Description string
	RetryAfter  time.Duration
	Err         error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("telegram %s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

func (e *APIError) Unwrap() error { return e.Err }

// Temporary reports whether the call may succeed if repeated: network
// failures, rate limiting and server errors.
func (e *APIError) Temporary() bool {
	if e.Err != nil {
		return true
	}
	code := e.Code
	if code == 0 {
		code = e.StatusCode
	}
	return code == http.StatusTooManyRequests || code >= 500
}

// classify marks err for the retry policy. Waits requested by the server
// are capped at maxWait.
func classify(err *APIError, maxWait time.Duration) error {
	if !err.Temporary() {
		return retry.Permanent(err)
	}
	if err.RetryAfter > 0 {
		wait := err.RetryAfter
		if maxWait > 0 && wait > maxWait {
			wait = maxWait
		}
		return retry.RetryAfter(err, wait)
	}
	return err
}
