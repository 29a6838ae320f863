// Package domain contains core domain types for the kiosk print broker.
package domain

import (
	"time"
)

// InputSession holds one pending question/answer exchange for a kiosk visitor.
type InputSession struct {
	Token      string
	SessionID  string
	Questions  []Question
	CreatedAt  time.Time
	ExpiresAt  time.Time
	AnsweredAt *time.Time
	Keywords   []string
}

// IsAnswered returns true once answers have been accepted for the session.
func (s *InputSession) IsAnswered() bool {
	return s.AnsweredAt != nil
}

// Expired reports whether the session has outlived ttl at now.
func (s *InputSession) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// Clone returns a deep copy that shares no slices with s.
func (s *InputSession) Clone() *InputSession {
	c := *s
	c.Questions = append([]Question(nil), s.Questions...)
	if s.Keywords != nil {
		c.Keywords = append([]string(nil), s.Keywords...)
	}
	if s.AnsweredAt != nil {
		at := *s.AnsweredAt
		c.AnsweredAt = &at
	}
	return &c
}
