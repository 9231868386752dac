package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/cosmic-guide/internal/conversation"
	"github.com/ashureev/cosmic-guide/internal/domain"
	"github.com/ashureev/cosmic-guide/internal/identity"
	"github.com/ashureev/cosmic-guide/internal/persona"
)

// RegisterRoutes registers the chat API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/guides", h.ListGuides)
		r.Get("/commands", h.ListCommands)
		r.Get("/session", h.GetSession)
		r.Delete("/session", h.ClearSession)
		r.Put("/session/profile", h.UpdateProfile)
		r.Put("/session/guide", h.SelectGuide)
		r.Post("/chat", h.Chat)
		r.Post("/chat/command", h.Command)
	})
}

type guideView struct {
	ID         domain.Persona `json:"id"`
	Name       string         `json:"name"`
	Tagline    string         `json:"tagline"`
	Salutation string         `json:"salutation"`
}

// ListGuides returns the available guide personas.
func (h *Handler) ListGuides(w http.ResponseWriter, _ *http.Request) {
	guides := persona.All()
	out := make([]guideView, 0, len(guides))
	for _, g := range guides {
		out = append(out, guideView{ID: g.Persona, Name: g.Name(), Tagline: g.Tagline, Salutation: g.Salutation})
	}
	JSON(w, http.StatusOK, map[string]any{"guides": out})
}

// ListCommands returns the command centre entries.
func (h *Handler) ListCommands(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"commands": conversation.Commands()})
}

type sessionView struct {
	ID                 string               `json:"id"`
	Guide              domain.Persona       `json:"guide"`
	GuideName          string               `json:"guide_name"`
	Profile            domain.Profile       `json:"profile"`
	Messages           []domain.Message     `json:"messages"`
	CurrentTopic       domain.Topic         `json:"current_topic,omitempty"`
	Phase              domain.Phase         `json:"phase"`
	PhaseName          string               `json:"phase_name"`
	TopicHistory       map[domain.Topic]int `json:"topic_history"`
	ConversationDepth  int                  `json:"conversation_depth"`
	Engagement         int                  `json:"engagement"`
	RemainingQuestions int                  `json:"remaining_questions"`
}

func (h *Handler) view(s *domain.Session) sessionView {
	return sessionView{
		ID:                 s.ID,
		Guide:              s.Guide,
		GuideName:          s.Guide.Name(),
		Profile:            s.Profile,
		Messages:           s.Messages,
		CurrentTopic:       s.CurrentTopic,
		Phase:              s.Phase,
		PhaseName:          s.Phase.String(),
		TopicHistory:       s.TopicHistory,
		ConversationDepth:  s.ConversationDepth,
		Engagement:         conversation.EngagementScore(s),
		RemainingQuestions: h.engine.RemainingQuestions(s),
	}
}

// GetSession returns a snapshot of the caller's session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.loadSession(ctx, identity.UserIDFromContext(ctx), identity.SessionKey(ctx))
	if err != nil {
		slog.Error("Failed to load session", "error", err, "session_id", identity.SessionKey(ctx))
		writeErr(w, err)
		return
	}
	s.Normalize()
	JSON(w, http.StatusOK, h.view(s))
}

// ClearSession discards the caller's session.
func (h *Handler) ClearSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := identity.SessionKey(ctx)

	unlock, ok := h.lockSession(key)
	if !ok {
		writeErr(w, errSessionBusy)
		return
	}
	defer unlock()

	if err := h.repo.DeleteSession(ctx, key); err != nil {
		slog.Error("Failed to delete session", "error", err, "session_id", key)
		writeErr(w, err)
		return
	}
	slog.Info("Session cleared", "user_id", identity.UserIDFromContext(ctx), "session_id", key)
	JSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// UpdateProfile stores the onboarding profile and returns the welcome message.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p domain.Profile
	if err := decodeBody(w, r, &p); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}

	ctx := r.Context()
	var welcome domain.Message
	s, err := h.withSession(ctx, identity.UserIDFromContext(ctx), identity.SessionKey(ctx), func(s *domain.Session) error {
		welcome = h.engine.Welcome(s, p)
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	h.logTurn(identity.UserIDFromContext(ctx), identity.SessionIDFromContext(ctx), "chat_http", chiMiddleware.GetReqID(ctx), welcome, false)
	JSON(w, http.StatusOK, map[string]any{"welcome": welcome, "session": h.view(s)})
}

// SelectGuide switches the active persona of the caller's session.
func (h *Handler) SelectGuide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Guide string `json:"guide"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := domain.ParsePersona(req.Guide)
	if err != nil {
		writeErr(w, err)
		return
	}

	ctx := r.Context()
	s, err := h.withSession(ctx, identity.UserIDFromContext(ctx), identity.SessionKey(ctx), func(s *domain.Session) error {
		return h.engine.SelectGuide(s, p)
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	JSON(w, http.StatusOK, h.view(s))
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity.UserIDFromContext(ctx)
	if h.limiter != nil && !h.limiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	slog.Info("Chat request",
		"user_id", userID,
		"session_id", identity.SessionIDFromContext(ctx),
		"message_length", len(req.Message),
	)
	res, err := h.chatTurn(ctx, userID, identity.SessionIDFromContext(ctx), identity.SessionKey(ctx), req.Message, "chat_http", chiMiddleware.GetReqID(ctx))
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			slog.Error("Chat turn failed", "error", err, "user_id", userID)
		}
		writeErr(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Command handles POST /api/chat/command.
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity.UserIDFromContext(ctx)
	if h.limiter != nil && !h.limiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.commandTurn(ctx, userID, identity.SessionIDFromContext(ctx), identity.SessionKey(ctx), req.Command, "chat_http", chiMiddleware.GetReqID(ctx))
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			slog.Error("Command failed", "error", err, "user_id", userID)
		}
		writeErr(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}
