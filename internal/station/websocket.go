package station

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/cardkiosk/printbroker/internal/middleware"
	"github.com/cardkiosk/printbroker/internal/notify"
)

const (
	writeTimeout  = 5 * time.Second
	eventBuffer   = 32
	maxClientMsg  = 4096
	clientIDParam = "clientId"
)

// DepthSource reports the number of unclaimed jobs.
type DepthSource interface {
	PendingCount() int
}

// Handler upgrades station connections and relays queue events to them.
// Events are hints to poll the claim endpoint, not authoritative state.
type Handler struct {
	hub           *notify.Hub
	queue         DepthSource
	registry      *Registry
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewHandler creates a station WebSocket handler.
func NewHandler(hub *notify.Hub, queue DepthSource, registry *Registry, allowedOrigin string, isDev bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:           hub,
		queue:         queue,
		registry:      registry,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

type clientMessage struct {
	Type string `json:"type"`
}

// ServeHTTP implements http.Handler for the station stream.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.URL.Query().Get(clientIDParam))
	if clientID == "" {
		clientID = middleware.ClientIP(r)
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "client_id", clientID)
		return
	}
	ws.SetReadLimit(maxClientMsg)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "client_id", clientID)
		}
	}()

	h.registry.Register(clientID, ws)
	defer h.registry.Unregister(clientID, ws)

	sub := h.hub.Subscribe(eventBuffer)
	defer sub.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snapshot := notify.Event{Type: notify.EventQueueDepth, Pending: h.queue.PendingCount()}
	if err := h.writeJSON(ctx, ws, snapshot); err != nil {
		h.logger.Debug("Failed to send queue snapshot", "error", err, "client_id", clientID)
		return
	}

	go func() {
		defer cancel()
		h.readLoop(ctx, ws, clientID)
	}()

	h.relayLoop(ctx, ws, sub, clientID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, clientID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("WebSocket closed by station", "client_id", clientID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "client_id", clientID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.logger.Debug("Ignoring malformed station message", "client_id", clientID)
			continue
		}

		if msg.Type == "ping" {
			if err := h.writeJSON(ctx, ws, map[string]string{"type": "pong"}); err != nil {
				h.logger.Debug("Failed to send pong", "error", err, "client_id", clientID)
				return
			}
		}
	}
}

func (h *Handler) relayLoop(ctx context.Context, ws *websocket.Conn, sub *notify.Subscription, clientID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := h.writeJSON(ctx, ws, ev); err != nil {
				h.logger.Debug("Failed to relay event", "error", err, "client_id", clientID, "type", ev.Type)
				return
			}
		}
	}
}

// writeJSON may be called from both loops; websocket.Conn serializes writers.
func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
