// Package api provides HTTP handlers for the guide chat API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/cosmic-guide/internal/chatlog"
	"github.com/ashureev/cosmic-guide/internal/conversation"
	"github.com/ashureev/cosmic-guide/internal/domain"
	"github.com/ashureev/cosmic-guide/internal/store"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (64KB).
const defaultMaxRequestBodySize = 64 << 10

var (
	errEmptyMessage = errors.New("message is required")
	errSessionBusy  = errors.New("a turn for this session is already in progress")
)

// Deps bundles the collaborators of the chat handlers.
type Deps struct {
	Repo         store.Repository
	Engine       *conversation.Engine
	ChatLog      chatlog.Logger
	Limiter      *RateLimiter
	Conns        *ConnManager
	DefaultGuide domain.Persona
	Now          func() time.Time
}

// Handler serves the chat endpoints.
type Handler struct {
	repo         store.Repository
	engine       *conversation.Engine
	log          chatlog.Logger
	limiter      *RateLimiter
	conns        *ConnManager
	defaultGuide domain.Persona
	now          func() time.Time

	// sessionLocks serializes turns per session key.
	sessionLocks sync.Map
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(d Deps) *Handler {
	if d.ChatLog == nil {
		d.ChatLog = chatlog.Noop{}
	}
	if d.Conns == nil {
		d.Conns = NewConnManager()
	}
	if !d.DefaultGuide.Valid() {
		d.DefaultGuide = domain.VedicGuru
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{
		repo:         d.Repo,
		engine:       d.Engine,
		log:          d.ChatLog,
		limiter:      d.Limiter,
		conns:        d.Conns,
		defaultGuide: d.DefaultGuide,
		now:          d.Now,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// statusFor maps handler and engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errEmptyMessage),
		errors.Is(err, conversation.ErrUnknownCommand),
		errors.Is(err, domain.ErrUnknownPersona):
		return http.StatusBadRequest
	case errors.Is(err, errSessionBusy):
		return http.StatusConflict
	case errors.Is(err, conversation.ErrDailyLimit):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	Error(w, status, msg)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

// lockSession takes the per-session turn lock without blocking. A mutex that
// ForgetSession removed while we waited for it is dropped and retried.
func (h *Handler) lockSession(key string) (func(), bool) {
	for {
		lock, _ := h.sessionLocks.LoadOrStore(key, &sync.Mutex{})
		mutex := lock.(*sync.Mutex)
		if !mutex.TryLock() {
			return nil, false
		}
		if current, ok := h.sessionLocks.Load(key); ok && current == lock {
			return mutex.Unlock, true
		}
		mutex.Unlock()
	}
}

// ForgetSession drops per-session state held by the handler. It is the TTL
// worker's cleanup callback. The turn lock is kept while a turn holds it.
func (h *Handler) ForgetSession(sessionKey string) {
	if lock, ok := h.sessionLocks.Load(sessionKey); ok {
		mutex := lock.(*sync.Mutex)
		if mutex.TryLock() {
			h.sessionLocks.CompareAndDelete(sessionKey, lock)
			mutex.Unlock()
		}
	}
	h.conns.CloseKey(sessionKey)
}

// withSession loads (or starts) the session under its turn lock, runs fn and
// saves the result when fn succeeds.
func (h *Handler) withSession(ctx context.Context, userID, sessionKey string, fn func(*domain.Session) error) (*domain.Session, error) {
	unlock, ok := h.lockSession(sessionKey)
	if !ok {
		slog.Warn("Turn already in progress", "user_id", userID, "session_id", sessionKey)
		return nil, errSessionBusy
	}
	defer unlock()

	s, err := h.loadSession(ctx, userID, sessionKey)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := h.repo.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

func (h *Handler) loadSession(ctx context.Context, userID, sessionKey string) (*domain.Session, error) {
	s, err := h.repo.GetSession(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		s = domain.NewSession(sessionKey, userID, h.defaultGuide, h.now())
	}
	return s, nil
}

// turnResponse is the payload of a chat turn on both transports.
type turnResponse struct {
	*conversation.TurnResult
	Remaining int `json:"remaining_questions"`
}

// chatTurn runs one user turn for the session and logs both sides of it.
func (h *Handler) chatTurn(ctx context.Context, userID, sessionID, sessionKey, text, channel, requestID string) (*turnResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errEmptyMessage
	}

	var res *conversation.TurnResult
	s, err := h.withSession(ctx, userID, sessionKey, func(s *domain.Session) error {
		var err error
		res, err = h.engine.HandleUserTurn(ctx, s, text)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.logTurn(userID, sessionID, channel, requestID, res.User, false)
	h.logTurn(userID, sessionID, channel, requestID, res.Assistant, res.Fallback)
	return &turnResponse{TurnResult: res, Remaining: h.engine.RemainingQuestions(s)}, nil
}

// commandTurn runs one command centre request for the session.
func (h *Handler) commandTurn(ctx context.Context, userID, sessionID, sessionKey, name, channel, requestID string) (*conversation.CommandResult, error) {
	var res *conversation.CommandResult
	_, err := h.withSession(ctx, userID, sessionKey, func(s *domain.Session) error {
		var err error
		res, err = h.engine.RunCommand(ctx, s, strings.TrimSpace(name))
		return err
	})
	if err != nil {
		return nil, err
	}

	h.logTurn(userID, sessionID, channel, requestID, res.User, false)
	h.logTurn(userID, sessionID, channel, requestID, res.Assistant, res.Fallback)
	return res, nil
}

func (h *Handler) logTurn(userID, sessionID, channel, requestID string, m domain.Message, fallback bool) {
	direction, eventType := "outbound", "chat_user_message"
	if m.Role == domain.RoleAssistant {
		direction, eventType = "inbound", "chat_assistant_message"
	}
	h.log.Log(chatlog.Event{
		Timestamp:  m.CreatedAt.UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  direction,
		EventType:  eventType,
		Guide:      m.Guide.String(),
		Topic:      string(m.Topic),
		Phase:      int(m.Phase),
		ContentRaw: m.Content,
		Meta: map[string]any{
			"request_id": requestID,
			"kind":       string(m.Kind),
			"upsell":     m.Upsell,
			"fallback":   fallback,
		},
	})
}
