package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/atrbot/internal/retry"
)

type apiCall struct {
	path   string
	params url.Values
}

// fakeAPI answers each Bot API method with a canned body and status.
type fakeAPI struct {
	mu        sync.Mutex
	calls     []apiCall
	responses map[string]string
	status    map[string]int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	params := r.PostForm
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	f.mu.Lock()
	f.calls = append(f.calls, apiCall{path: r.URL.Path, params: params})
	body, ok := f.responses[method]
	status := f.status[method]
	f.mu.Unlock()
	if !ok {
		body = `{"ok":true,"result":true}`
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeAPI) Calls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient("123:secret", WithBaseURL(srv.URL+"/"), WithMaxRetryWait(5*time.Second))
}

func TestGetUpdates(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"getUpdates": `{"ok":true,"result":[
			{"update_id":5,"message":{"message_id":1,"chat":{"id":42,"type":"private"},"date":1,"text":"hola"}},
			{"update_id":6,"message":{"message_id":2,"chat":{"id":43,"type":"private"},"date":1}},
			{"update_id":7}
		]}`,
	}}
	c := newTestClient(t, api)
	updates, err := c.GetUpdates(context.Background(), 5, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 3 || updates[0].UpdateID != 5 || updates[2].UpdateID != 7 {
		t.Fatalf("updates = %+v", updates)
	}
	if id, ok := updates[0].ChatID(); !ok || id != 42 || updates[0].Text() != "hola" {
		t.Errorf("first update chat %d text %q", id, updates[0].Text())
	}
	if updates[1].Text() != "" {
		t.Errorf("update without text = %q", updates[1].Text())
	}
	if _, ok := updates[2].ChatID(); ok {
		t.Error("update without message should have no chat")
	}
	call := api.Calls()[0]
	if call.path != "/bot123:secret/getUpdates" {
		t.Errorf("path = %s", call.path)
	}
	if call.params.Get("offset") != "5" || call.params.Get("timeout") != "100" {
		t.Errorf("params = %v", call.params)
	}
	if call.params.Get("allowed_updates") != `["message"]` {
		t.Errorf("allowed_updates = %q", call.params.Get("allowed_updates"))
	}
}

func TestSendMessage_splitsLongText(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	text := strings.Repeat("ñ", MaxMessageLength+10)
	if err := c.SendMessage(context.Background(), 42, text); err != nil {
		t.Fatal(err)
	}
	if len(api.Calls()) != 2 {
		t.Fatalf("calls = %d, want 2", len(api.Calls()))
	}
	first := api.Calls()[0].params.Get("text")
	second := api.Calls()[1].params.Get("text")
	if utf8.RuneCountInString(first) != MaxMessageLength || utf8.RuneCountInString(second) != 10 {
		t.Errorf("parts of %d and %d runes", utf8.RuneCountInString(first), utf8.RuneCountInString(second))
	}
	if api.Calls()[0].params.Get("chat_id") != "42" {
		t.Errorf("chat_id = %v", api.Calls()[0].params.Get("chat_id"))
	}
	if err := c.SendMessage(context.Background(), 42, "  "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank send err = %v", err)
	}
}

func TestGetMe(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"getMe": `{"ok":true,"result":{"id":99,"is_bot":true,"first_name":"ATR","username":"atr_bot"}}`,
	}}
	me, err := newTestClient(t, api).GetMe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if me.ID != 99 || !me.IsBot || me.Username != "atr_bot" {
		t.Errorf("me = %+v", me)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		permanent  bool
		retryAfter time.Duration
	}{
		{"unauthorized", 401, `{"ok":false,"error_code":401,"description":"Unauthorized"}`, true, 0},
		{"bad request", 400, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`, true, 0},
		{"rate limited", 429, `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":3}}`, false, 3 * time.Second},
		{"rate limit capped", 429, `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":60}}`, false, 60 * time.Second},
		{"server error", 502, `<html>bad gateway</html>`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{
				responses: map[string]string{"sendMessage": tt.body},
				status:    map[string]int{"sendMessage": tt.status},
			}
			err := newTestClient(t, api).SendMessage(context.Background(), 1, "hola")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if got := retry.IsPermanent(err); got != tt.permanent {
				t.Errorf("permanent = %v, want %v", got, tt.permanent)
			}
			if apiErr.Temporary() == tt.permanent {
				t.Errorf("Temporary() = %v", apiErr.Temporary())
			}
			if apiErr.RetryAfter != tt.retryAfter {
				t.Errorf("RetryAfter = %v, want %v", apiErr.RetryAfter, tt.retryAfter)
			}
		})
	}
}

func TestRetryAfterIsHonoured(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":1}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	t.Cleanup(srv.Close)
	c := NewClient("t", WithBaseURL(srv.URL), WithMaxRetryWait(50*time.Millisecond))

	start := time.Now()
	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond}, func(ctx context.Context) error {
		_, err := c.GetUpdates(ctx, 0, 0)
		return err
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("retried after %v, want the capped 50ms wait", elapsed)
	}
}

func TestNetworkErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	c := NewClient("123:secret", WithBaseURL(addr))
	_, err := c.GetMe(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Err == nil || !apiErr.Temporary() {
		t.Fatalf("err = %v, want temporary network APIError", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("error leaks token: %v", err)
	}
}

func TestGetUpdates_contextCancels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	c := NewClient("t", WithBaseURL(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.GetUpdates(ctx, 0, 30)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestGetUpdates_sender(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"getUpdates": `{"ok":true,"result":[
			{"update_id":9,"message":{"message_id":3,"from":{"id":7,"is_bot":false,"first_name":"Ana","username":"ana"},"chat":{"id":7,"type":"private"},"date":1700000000,"text":"hola"}}
		]}`,
	}}
	updates, err := newTestClient(t, api).GetUpdates(context.Background(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	m := updates[0].Message
	if m.From == nil || m.From.ID != 7 || m.From.Username != "ana" || m.Date != 1700000000 || m.MessageID != 3 {
		t.Errorf("message = %+v from %+v", m, m.From)
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name  string
		runes int
		parts []int
	}{
		{"short", 10, []int{10}},
		{"exact", MaxMessageLength, []int{MaxMessageLength}},
		{"one over", MaxMessageLength + 1, []int{MaxMessageLength, 1}},
		{"two full", 2 * MaxMessageLength, []int{MaxMessageLength, MaxMessageLength}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := SplitMessage(strings.Repeat("é", tt.runes))
			if len(parts) != len(tt.parts) {
				t.Fatalf("got %d parts, want %d", len(parts), len(tt.parts))
			}
			for i, p := range parts {
				if n := utf8.RuneCountInString(p); n != tt.parts[i] {
					t.Errorf("part %d has %d runes, want %d", i, n, tt.parts[i])
				}
			}
		})
	}
}
