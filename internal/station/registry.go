// Package station serves the print-station event stream over WebSocket and
// tracks which stations are connected.
package station

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks one live connection per station client id.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		active: make(map[string]*websocket.Conn),
		logger: logger,
	}
}

// Register records conn for clientID, closing any connection it replaces.
// The old connection is closed after the lock is released.
func (m *Registry) Register(clientID string, conn *websocket.Conn) {
	m.mu.Lock()
	replaced := m.active[clientID]
	m.active[clientID] = conn
	m.mu.Unlock()

	if replaced != nil && replaced != conn {
		_ = replaced.Close(websocket.StatusPolicyViolation, "station replaced")
	}
	m.logger.Info("Station connected", "client_id", clientID)
}

// Unregister removes conn if it is still the current one for clientID.
func (m *Registry) Unregister(clientID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.active[clientID]; exists && current == conn {
		delete(m.active, clientID)
		m.logger.Info("Station disconnected", "client_id", clientID)
	}
}

// Connected returns the ids of connected stations in sorted order.
func (m *Registry) Connected() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll terminates every connection, used on shutdown.
func (m *Registry) CloseAll() {
	m.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.active))
	for id, conn := range m.active {
		conns = append(conns, conn)
		delete(m.active, id)
	}
	m.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
