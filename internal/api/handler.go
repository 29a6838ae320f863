// Package api provides HTTP handlers for the print broker API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cardkiosk/printbroker/internal/domain"
	"github.com/cardkiosk/printbroker/internal/printqueue"
	"github.com/cardkiosk/printbroker/internal/render"
	"github.com/cardkiosk/printbroker/internal/session"
)

// maxJSONBody bounds request bodies that carry no image.
const maxJSONBody = 64 << 10

// ContentGenerator produces cards and question sets.
type ContentGenerator interface {
	GenerateCard(ctx context.Context, keywords []string) (*domain.CardRecord, error)
	GenerateQuestions(ctx context.Context) (*domain.QuestionSet, error)
}

// StationLister reports connected print stations.
type StationLister interface {
	Connected() []string
}

// SubscriberCounter reports how many event listeners are attached.
type SubscriberCounter interface {
	Count() int
}

// Deps groups the collaborators a Handler needs.
type Deps struct {
	Generator     ContentGenerator
	Renderer      render.Renderer
	Sessions      *session.Store
	Queue         *printqueue.Queue
	Subscribers   SubscriberCounter
	Stations      StationLister
	MaxImageBytes int
	Logger        *slog.Logger
}

// Handler serves the kiosk and print-station endpoints.
type Handler struct {
	gen           ContentGenerator
	renderer      render.Renderer
	sessions      *session.Store
	queue         *printqueue.Queue
	subscribers   SubscriberCounter
	stations      StationLister
	maxImageBytes int
	logger        *slog.Logger
	newID         func() string
}

// NewHandler creates a Handler from its dependencies.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := d.Renderer
	if renderer == nil {
		renderer = render.NewCardRenderer()
	}
	return &Handler{
		gen:           d.Generator,
		renderer:      renderer,
		sessions:      d.Sessions,
		queue:         d.Queue,
		subscribers:   d.Subscribers,
		stations:      d.Stations,
		maxImageBytes: d.MaxImageBytes,
		logger:        logger,
		newID:         newCardID,
	}
}

// RegisterRoutes mounts the API. limit wraps the generation endpoints and
// may be nil.
func (h *Handler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limit != nil {
				r.Use(limit)
			}
			r.Post("/sessions", h.CreateSession)
			r.Post("/questions", h.GenerateQuestions)
			r.Post("/cards", h.GenerateCard)
		})

		r.Get("/sessions/{token}", h.GetSession)
		r.Get("/sessions/{token}/status", h.SessionStatus)
		r.Post("/sessions/{token}/answers", h.SubmitAnswers)

		r.Post("/print/jobs", h.EnqueueJob)
		r.Post("/print/claim", h.ClaimJob)
		r.Get("/print/jobs/{id}", h.JobStatus)
		r.Post("/print/jobs/{id}/result", h.ReportResult)
		r.Get("/print/status", h.PrintStatus)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "INTERNAL"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response with a machine code and a short message.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, map[string]string{"error": code, "message": message})
}

type errorMapping struct {
	status  int
	message string
}

var errorMappings = map[string]errorMapping{
	domain.CodeInvalidInput:     {http.StatusBadRequest, "invalid input"},
	domain.CodeNotFound:         {http.StatusNotFound, "not found or expired"},
	domain.CodeAlreadyUsed:      {http.StatusConflict, "already used"},
	domain.CodeAIFailed:         {http.StatusBadGateway, "generation failed, please try again"},
	domain.CodeInvalidStatus:    {http.StatusBadRequest, "status must be printed or failed"},
	domain.CodePrintQueueFailed: {http.StatusInternalServerError, "could not queue print job"},
	domain.CodeInternal:         {http.StatusInternalServerError, "internal error"},
}

// writeError maps err to its code and fixed message. Error detail only goes
// to the log.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.Code(err)
	m, ok := errorMappings[code]
	if !ok {
		code = domain.CodeInternal
		m = errorMappings[code]
	}
	if m.status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", r.URL.Path, "code", code, "error", err)
	} else {
		h.logger.Debug("Request rejected", "path", r.URL.Path, "code", code, "error", err)
	}
	Error(w, m.status, code, m.message)
}

func badRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, domain.CodeInvalidInput, message)
}

// decodeJSON reads a JSON body of at most limit bytes. An empty body leaves
// dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	err := json.NewDecoder(body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
