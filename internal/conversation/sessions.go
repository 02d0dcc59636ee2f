package conversation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/atrbot/pkg/utils"
	"go.uber.org/zap"
)

// Session is the open conversation of one chat.
type Session struct {
	ChatID     int64
	Record     *Record
	LastActive time.Time
}

// Sessions tracks open conversations by chat. It is safe for concurrent use.
type Sessions struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	writer   *Writer
	logger   *zap.Logger
}

// Option configures Sessions.
type Option func(*Sessions)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sessions) { s.logger = l }
}

// NewSessions creates an empty session table that persists through writer.
func NewSessions(writer *Writer, opts ...Option) *Sessions {
	s := &Sessions{sessions: make(map[int64]*Session), writer: writer}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Open returns the chat's session, starting one if needed, and marks it active.
func (s *Sessions) Open(chatID int64, now time.Time) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(chatID, now)
}

func (s *Sessions) openLocked(chatID int64, now time.Time) *Session {
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &Session{ChatID: chatID, Record: NewRecord(now), LastActive: now}
		s.sessions[chatID] = sess
		s.logger.Debug("session opened", zap.Int64("chat_id", chatID), zap.String("record", sess.Record.ID))
	}
	sess.LastActive = now
	return sess
}

// Get returns the chat's session if one is open.
func (s *Sessions) Get(chatID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	return sess, ok
}

// AppendExchange records a question and its reply, opening a session if needed.
func (s *Sessions) AppendExchange(chatID int64, user, bot string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.openLocked(chatID, now)
	sess.Record.AppendUser(user)
	sess.Record.AppendBot(bot)
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close ends the chat's session and saves its transcript. It returns the
// file path, or "" when there was no session or nothing to save.
func (s *Sessions) Close(chatID int64, now time.Time) (string, error) {
	s.mu.Lock()
	sess, ok := s.sessions[chatID]
	delete(s.sessions, chatID)
	s.mu.Unlock()
	if !ok {
		return "", nil
	}
	return s.persist(sess, now)
}

// CloseAll ends every session, saving each transcript.
func (s *Sessions) CloseAll(now time.Time) error {
	s.mu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.sessions = make(map[int64]*Session)
	s.mu.Unlock()

	sort.Slice(open, func(i, j int) bool { return open[i].ChatID < open[j].ChatID })
	var errs []error
	for _, sess := range open {
		if _, err := s.persist(sess, now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExpireIdle closes sessions inactive for longer than idle and returns the
// chats that were closed.
func (s *Sessions) ExpireIdle(now time.Time, idle time.Duration) ([]int64, error) {
	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActive) > idle {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool { return expired[i].ChatID < expired[j].ChatID })
	ids := make([]int64, 0, len(expired))
	var errs []error
	for _, sess := range expired {
		ids = append(ids, sess.ChatID)
		if _, err := s.persist(sess, now); err != nil {
			errs = append(errs, err)
		}
	}
	if len(ids) > 0 {
		s.logger.Info("idle sessions closed", zap.Int64s("chat_ids", ids))
	}
	return ids, errors.Join(errs...)
}

func (s *Sessions) persist(sess *Session, now time.Time) (string, error) {
	if sess.Record.Len() == 0 {
		return "", nil
	}
	path, err := s.writer.Save(sess.ChatID, sess.Record, now)
	if err != nil {
		return "", fmt.Errorf("chat %d: %w", sess.ChatID, err)
	}
	s.logger.Info("conversation saved",
		zap.Int64("chat_id", sess.ChatID),
		zap.Int("entries", sess.Record.Len()),
		zap.String("path", path))
	return path, nil
}
