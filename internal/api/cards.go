package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Keyword limits for card generation requests.
const (
	MaxKeywords      = 12
	MaxKeywordLength = 256
)

type cardRequest struct {
	Keywords []string `json:"keywords"`
}

func newCardID() string {
	return uuid.NewString()
}

// GenerateQuestions returns a fresh question set without storing a session.
func (h *Handler) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	set, err := h.gen.GenerateQuestions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, set)
}

// GenerateCard turns keywords into card data plus a rendered image.
func (h *Handler) GenerateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	keywords, err := cleanKeywords(req.Keywords)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	card, err := h.gen.GenerateCard(r.Context(), keywords)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	img, err := h.renderer.RenderCard(card)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("render card: %w", err))
		return
	}

	cardID := h.newID()
	h.logger.Info("Card generated", "card_id", cardID, "class", card.Class, "image_bytes", len(img))
	JSON(w, http.StatusOK, map[string]interface{}{
		"cardId":          cardID,
		"cardData":        card,
		"cardImageBase64": base64.StdEncoding.EncodeToString(img),
	})
}

func cleanKeywords(raw []string) ([]string, error) {
	if len(raw) == 0 || len(raw) > MaxKeywords {
		return nil, fmt.Errorf("keywords must contain 1-%d entries", MaxKeywords)
	}
	out := make([]string, 0, len(raw))
	for _, kw := range raw {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			return nil, errors.New("keywords must not be empty")
		}
		if utf8.RuneCountInString(kw) > MaxKeywordLength {
			return nil, fmt.Errorf("keywords must be at most %d characters", MaxKeywordLength)
		}
		out = append(out, kw)
	}
	return out, nil
}

