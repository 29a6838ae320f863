// Package session keeps short-lived, token-keyed question/answer sessions.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cardkiosk/printbroker/internal/domain"
)

const (
	MaxNameLength   = 32
	MaxAnswerLength = 80
)

// Store holds at most one pending exchange per issued token.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*domain.InputSession
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
	newToken func() (string, error)
}

// NewStore creates an empty session store.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*domain.InputSession),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		newToken: generateToken,
	}
}

func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create stores a new unanswered session for set and returns its token.
func (s *Store) Create(set *domain.QuestionSet) (string, time.Time, error) {
	if set == nil || len(set.Questions) == 0 {
		return "", time.Time{}, fmt.Errorf("empty question set: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var token string
	for {
		t, err := s.newToken()
		if err != nil {
			return "", time.Time{}, err
		}
		if _, exists := s.sessions[t]; !exists {
			token = t
			break
		}
	}

	now := s.now()
	sess := &domain.InputSession{
		Token:     token,
		SessionID: set.SessionID,
		Questions: append([]domain.Question(nil), set.Questions...),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[token] = sess

	s.logger.Info("Input session created", "session_id", set.SessionID, "questions", len(set.Questions))
	return token, sess.ExpiresAt, nil
}

// Get returns a copy of the live session for token. Expired and unknown
// tokens both yield domain.ErrNotFound.
func (s *Store) Get(token string) (*domain.InputSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(token)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// SubmitAnswers accepts the single answer submission for token.
func (s *Store) SubmitAnswers(token, name string, answers map[int]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(token)
	if err != nil {
		return err
	}
	if sess.IsAnswered() {
		return fmt.Errorf("session %s: %w", sess.SessionID, domain.ErrAlreadyAnswered)
	}

	cleanName, ok := s.clip("name", name, MaxNameLength)
	if !ok {
		return fmt.Errorf("name is required: %w", domain.ErrInvalidInput)
	}

	keywords := make([]string, 0, len(sess.Questions)+2)
	keywords = append(keywords, "session:"+sess.SessionID, "name:"+cleanName)
	for _, q := range sess.Questions {
		answer, ok := s.clip("answer", answers[q.ID], MaxAnswerLength)
		if !ok {
			return fmt.Errorf("question %d has no answer: %w", q.ID, domain.ErrInvalidInput)
		}
		keywords = append(keywords, "q"+strconv.Itoa(q.ID)+":"+q.Text+" => "+answer)
	}

	now := s.now()
	sess.AnsweredAt = &now
	sess.Keywords = keywords

	s.logger.Info("Input session answered", "session_id", sess.SessionID, "keywords", len(keywords))
	return nil
}

// Sweep purges every session older than the TTL and returns how many were
// removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, sess := range s.sessions {
		if sess.Expired(now, s.ttl) {
			delete(s.sessions, token)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("Expired input sessions purged", "count", removed, "remaining", len(s.sessions))
	}
	return removed
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		s.logger.Info("Session sweeper started", "interval", interval, "ttl", s.ttl)

		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-ctx.Done():
				s.logger.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (s *Store) lookupLocked(token string) (*domain.InputSession, error) {
	sess, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if sess.Expired(s.now(), s.ttl) {
		delete(s.sessions, token)
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

// clip trims v and truncates it to max runes. It reports false when nothing
// is left.
func (s *Store) clip(field, v string, max int) (string, bool) {
	v = strings.TrimSpace(v)
	if utf8.RuneCountInString(v) > max {
		v = strings.TrimSpace(string([]rune(v)[:max]))
		s.logger.Debug("Truncated input", "field", field, "max", max)
	}
	return v, v != ""
}
