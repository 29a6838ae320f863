// Package generator produces card records and question sets from a remote
// text-generation backend, retrying until the output parses and validates.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cardkiosk/printbroker/internal/config"
	"github.com/cardkiosk/printbroker/internal/domain"
)

// Generator runs bounded attempts against a Backend. It holds no mutable
// state, so concurrent calls are safe.
type Generator struct {
	backend  Backend
	timeout  time.Duration
	attempts int
	logger   *slog.Logger
	newID    func() string
}

// New creates a Generator. A non-positive timeout falls back to 20s.
func New(backend Backend, timeout time.Duration, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Generator{
		backend:  backend,
		timeout:  timeout,
		attempts: config.GenerateAttempts,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// GenerateCard turns a keyword list into a validated card record.
func (g *Generator) GenerateCard(ctx context.Context, keywords []string) (*domain.CardRecord, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("no keywords: %w", domain.ErrInvalidInput)
	}

	var card *domain.CardRecord
	err := g.run(ctx, "card", cardSystemPrompt, cardUserMessage(keywords), func(obj map[string]any) error {
		c, err := validator{logger: g.logger}.card(obj)
		if err != nil {
			return err
		}
		card = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// GenerateQuestions produces a fresh question set with a new session id.
func (g *Generator) GenerateQuestions(ctx context.Context) (*domain.QuestionSet, error) {
	var questions []domain.Question
	err := g.run(ctx, "questions", questionSystemPrompt, questionUserCue, func(obj map[string]any) error {
		qs, err := validator{logger: g.logger}.questions(obj)
		if err != nil {
			return err
		}
		questions = qs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &domain.QuestionSet{SessionID: g.newID(), Questions: questions}, nil
}

// run performs up to g.attempts backend calls, stopping at the first output
// accepted by accept. Parent context cancellation ends the loop early.
func (g *Generator) run(ctx context.Context, kind, system, user string, accept func(map[string]any) error) error {
	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		stage, err := g.attempt(ctx, system, user, accept)
		if err == nil {
			if attempt > 1 {
				g.logger.Info("Generation succeeded after retry", "kind", kind, "attempt", attempt)
			}
			return nil
		}
		lastErr = err
		g.logger.Warn("Generation attempt failed",
			"kind", kind,
			"attempt", attempt,
			"max_attempts", g.attempts,
			"stage", stage,
			"error", err,
		)
	}

	g.logger.Error("Generation exhausted", "kind", kind, "error", lastErr)
	return fmt.Errorf("generate %s: %w: %w", kind, domain.ErrAIFailed, lastErr)
}

func (g *Generator) attempt(ctx context.Context, system, user string, accept func(map[string]any) error) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.backend.Complete(callCtx, system, user)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "timeout", err
		}
		return "backend", err
	}

	obj, err := decodeObject(raw)
	if err != nil {
		return "parse", err
	}

	if err := accept(obj); err != nil {
		return "validate", err
	}
	return "", nil
}
