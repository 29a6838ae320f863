package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cardkiosk/printbroker/internal/domain"
	"github.com/cardkiosk/printbroker/internal/middleware"
)

type enqueueRequest struct {
	Image string         `json:"image"`
	Meta  map[string]any `json:"meta"`
}

type resultRequest struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type claimResponse struct {
	JobID     string         `json:"jobId"`
	Image     string         `json:"image"`
	Meta      map[string]any `json:"meta"`
	CreatedAt string         `json:"createdAt"`
	FailCount int            `json:"failCount"`
}

// EnqueueJob accepts a rendered image for printing.
func (h *Handler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	// base64 inflates by 4/3; leave room for meta.
	limit := int64(h.maxImageBytes)/3*4 + maxJSONBody
	if err := decodeJSON(w, r, limit, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	payload, err := decodeImage(req.Image, h.maxImageBytes)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	jobID, err := h.queue.Enqueue(payload, req.Meta)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidInput) {
			err = fmt.Errorf("%w: %w", domain.ErrPrintQueueFailed, err)
		}
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, map[string]string{"jobId": jobID})
}

// ClaimJob hands the oldest unclaimed job to the calling station, or 204.
func (h *Handler) ClaimJob(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.URL.Query().Get("clientId"))
	if clientID == "" {
		clientID = middleware.ClientIP(r)
	}

	job, err := h.queue.ClaimNext(clientID)
	if errors.Is(err, domain.ErrNoJobAvailable) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	meta := job.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	JSON(w, http.StatusOK, claimResponse{
		JobID:     job.ID,
		Image:     base64.StdEncoding.EncodeToString(job.Payload),
		Meta:      meta,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		FailCount: job.FailCount,
	})
}

// JobStatus reports whether a job is still waiting or held by a station.
// Jobs that were printed or evicted are NOT_FOUND.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := "queued"
	if job.Claimed() {
		status = "claimed"
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"jobId":     job.ID,
		"status":    status,
		"failCount": job.FailCount,
		"createdAt": job.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// ReportResult records a station's printed/failed outcome for a job.
func (h *Handler) ReportResult(w http.ResponseWriter, r *http.Request) {
	var req resultRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	outcome := domain.Outcome(strings.ToLower(strings.TrimSpace(req.Status)))
	if err := h.queue.ReportOutcome(chi.URLParam(r, "id"), outcome, req.Message); err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// PrintStatus reports queue depth and listener counts for status displays.
func (h *Handler) PrintStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"pending": h.queue.PendingCount(),
		"jobs":    h.queue.Len(),
	}
	if h.subscribers != nil {
		resp["subscribers"] = h.subscribers.Count()
	}
	if h.stations != nil {
		resp["stations"] = h.stations.Connected()
	}
	JSON(w, http.StatusOK, resp)
}

// decodeImage accepts plain base64 or a data URL and enforces max bytes.
func decodeImage(image string, max int) ([]byte, error) {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "data:") {
		comma := strings.IndexByte(image, ',')
		if comma == -1 {
			return nil, errors.New("image data URL has no payload")
		}
		image = image[comma+1:]
	}
	if image == "" {
		return nil, errors.New("image is required")
	}
	if max > 0 && base64.StdEncoding.DecodedLen(len(image)) > max+2 {
		return nil, fmt.Errorf("image exceeds %d bytes", max)
	}

	payload, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		return nil, errors.New("image is not valid base64")
	}
	if len(payload) == 0 {
		return nil, errors.New("image is empty")
	}
	if max > 0 && len(payload) > max {
		return nil, fmt.Errorf("image exceeds %d bytes", max)
	}
	return payload, nil
}
