package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cardkiosk/printbroker/internal/domain"
)

type answersRequest struct {
	Name    string            `json:"name"`
	Answers map[string]string `json:"answers"`
}

// CreateSession generates questions and stores them behind a new token.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	set, err := h.gen.GenerateQuestions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	token, expiresAt, err := h.sessions.Create(set)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	JSON(w, http.StatusCreated, map[string]interface{}{
		"token":     token,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

// GetSession returns the questions for an unanswered session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sess.IsAnswered() {
		h.writeError(w, r, domain.ErrAlreadyAnswered)
		return
	}

	JSON(w, http.StatusOK, domain.QuestionSet{
		SessionID: sess.SessionID,
		Questions: sess.Questions,
	})
}

// SessionStatus reports whether answers have arrived, with keywords once
// they have.
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !sess.IsAnswered() {
		JSON(w, http.StatusOK, map[string]interface{}{"status": "pending"})
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":   "answered",
		"keywords": sess.Keywords,
	})
}

// SubmitAnswers records the visitor's name and answers.
func (h *Handler) SubmitAnswers(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	token := chi.URLParam(r, "token")
	answers := make(map[int]string, len(req.Answers))
	for key, text := range req.Answers {
		id, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			// Unknown and answered sessions outrank malformed input.
			sess, lookupErr := h.sessions.Get(token)
			switch {
			case lookupErr != nil:
				h.writeError(w, r, lookupErr)
			case sess.IsAnswered():
				h.writeError(w, r, domain.ErrAlreadyAnswered)
			default:
				badRequest(w, "answer keys must be question ids")
			}
			return
		}
		answers[id] = text
	}

	if err := h.sessions.SubmitAnswers(token, req.Name, answers); err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
