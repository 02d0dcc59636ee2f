// Package conversation keeps per-chat transcripts and writes them to disk.
package conversation

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Roles of a transcript entry.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Entry is one message. It marshals as a single-key object such as
// {"user": "hola"}.
type Entry struct {
	Role string
	Text string
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{e.Role: e.Text})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("entry must have exactly one key, got %d", len(m))
	}
	for role, text := range m {
		e.Role, e.Text = role, text
	}
	return nil
}

// Record is the ordered transcript of one conversation. It marshals as a
// JSON array of entries.
type Record struct {
	ID        string
	StartedAt time.Time

	mu      sync.Mutex
	entries []Entry
}

// NewRecord starts an empty transcript.
func NewRecord(now time.Time) *Record {
	return &Record{ID: uuid.NewString(), StartedAt: now}
}

// AppendUser adds a user message.
func (r *Record) AppendUser(text string) { r.append(RoleUser, text) }

// AppendBot adds a bot reply.
func (r *Record) AppendBot(text string) { r.append(RoleBot, text) }

func (r *Record) append(role, text string) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Role: role, Text: text})
	r.mu.Unlock()
}

// Entries returns a copy of the transcript.
func (r *Record) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Len returns the number of entries.
func (r *Record) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// MarshalJSON implements json.Marshaler.
func (r *Record) MarshalJSON() ([]byte, error) {
	entries := r.Entries()
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
	return nil
}
