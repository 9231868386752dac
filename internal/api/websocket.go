package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/cosmic-guide/internal/identity"
)

// ConnManager tracks the live chat WebSocket of each user/session.
type ConnManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewConnManager creates a new connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// GetActive returns the active connection for a user and session.
func (m *ConnManager) GetActive(userID, sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register adds a connection, replacing (and closing) any previous one for
// the same user/session.
func (m *ConnManager) Register(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := m.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[userID][sessionID] = conn
	slog.Info("Chat connection registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes a connection if it is still the current one.
func (m *ConnManager) Unregister(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
			slog.Info("Chat connection unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// CloseKey closes the connection of a session key (userID:sessionID). The
// close handshake runs after the manager lock is released.
func (m *ConnManager) CloseKey(sessionKey string) {
	userID, sessionID, ok := strings.Cut(sessionKey, ":")
	if !ok {
		return
	}

	m.mu.Lock()
	var conn *websocket.Conn
	if sessions, exists := m.active[userID]; exists {
		conn = sessions[sessionID]
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(m.active, userID)
		}
	}
	m.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "session expired")
	slog.Info("Chat connection closed", "user_id", userID, "session_id", sessionID)
}

// Count returns the number of live connections.
func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

// wsMessage is a client frame on /ws/chat.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// wsReply is a server frame on /ws/chat.
type wsReply struct {
	Type    string `json:"type"`
	Turn    any    `json:"turn,omitempty"`
	Command any    `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
	Status  int    `json:"status,omitempty"`
}

// WebSocketHandler carries chat turns over a WebSocket.
type WebSocketHandler struct {
	h             *Handler
	allowedOrigin string
	isDev         bool
	writeTimeout  time.Duration
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(h *Handler, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		h:             h,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		writeTimeout:  10 * time.Second,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (ws *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	sessionKey := identity.SessionKey(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !ws.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ws.h.conns.Register(userID, sessionID, conn)
	defer ws.h.conns.Unregister(userID, sessionID, conn)

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Debug("WebSocket read ended", "error", err, "user_id", userID)
			}
			return
		}

		reply := ws.dispatch(ctx, userID, sessionID, sessionKey, data)
		if err := ws.writeJSON(ctx, conn, reply); err != nil {
			slog.Debug("WebSocket write error", "error", err, "user_id", userID)
			return
		}
	}
}

func (ws *WebSocketHandler) dispatch(ctx context.Context, userID, sessionID, sessionKey string, data []byte) wsReply {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return wsReply{Type: "error", Error: "invalid message", Status: http.StatusBadRequest}
	}

	switch msg.Type {
	case "ping":
		return wsReply{Type: "pong"}
	case "message", "command":
		if ws.h.limiter != nil && !ws.h.limiter.Allow(userID) {
			return wsReply{Type: "error", Error: "rate limit exceeded", Status: http.StatusTooManyRequests}
		}
	default:
		return wsReply{Type: "error", Error: "unknown message type", Status: http.StatusBadRequest}
	}

	if msg.Type == "command" {
		res, err := ws.h.commandTurn(ctx, userID, sessionID, sessionKey, msg.Content, "chat_ws", "")
		if err != nil {
			return errorReply(err)
		}
		return wsReply{Type: "command", Command: res}
	}

	res, err := ws.h.chatTurn(ctx, userID, sessionID, sessionKey, msg.Content, "chat_ws", "")
	if err != nil {
		return errorReply(err)
	}
	return wsReply{Type: "turn", Turn: res}
}

func errorReply(err error) wsReply {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("WebSocket turn failed", "error", err)
		msg = "internal error"
	}
	return wsReply{Type: "error", Error: msg, Status: status}
}

func (ws *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if ws.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || ws.allowedOrigin == "*" || ws.allowedOrigin == "" {
		return true
	}
	if origin == ws.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", ws.allowedOrigin)
	return false
}

func (ws *WebSocketHandler) writeJSON(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, ws.writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
