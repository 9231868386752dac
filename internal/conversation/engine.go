package conversation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/cosmic-guide/internal/completion"
	"github.com/ashureev/cosmic-guide/internal/domain"
	"github.com/ashureev/cosmic-guide/internal/persona"
)

var (
	// ErrDailyLimit is returned when the session used up today's free questions.
	ErrDailyLimit = errors.New("daily question limit reached")
	// ErrUnknownCommand is returned for a command name not in the command centre.
	ErrUnknownCommand = errors.New("unknown command")
)

// Options configures an Engine.
type Options struct {
	Keywords     Keywords
	UpsellPolicy UpsellPolicy
	UpsellRule   string
	DailyLimit   int
	MaxTokens    int
	// Layered shapes replies by layer: short hooks, explorations with recent
	// context, then the premium gate reply instead of a completion.
	Layered bool
	Logger  *slog.Logger
	Now     func() time.Time
}

// Engine runs user turns against a session.
type Engine struct {
	detector   *TopicDetector
	phases     *PhaseController
	upsell     *UpsellTrigger
	provider   completion.Provider
	dailyLimit int
	maxTokens  int
	layered    bool
	log        *slog.Logger
	now        func() time.Time
}

// NewEngine builds an engine. A zero Options.Keywords uses the built-in table.
func NewEngine(provider completion.Provider, opts Options) (*Engine, error) {
	kw := opts.Keywords
	if len(kw.Topics) == 0 {
		kw = DefaultKeywords()
	}
	upsell, err := NewUpsellTrigger(kw, opts.UpsellPolicy, opts.UpsellRule)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if provider == nil {
		provider = completion.Unconfigured{}
	}
	detector := NewTopicDetector(kw)
	return &Engine{
		detector:   detector,
		phases:     NewPhaseController(detector, kw),
		upsell:     upsell,
		provider:   provider,
		dailyLimit: opts.DailyLimit,
		maxTokens:  opts.MaxTokens,
		layered:    opts.Layered,
		log:        opts.Logger,
		now:        opts.Now,
	}, nil
}

// Detector exposes the topic detector.
func (e *Engine) Detector() *TopicDetector { return e.detector }

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	User          domain.Message `json:"user"`
	Assistant     domain.Message `json:"assistant"`
	Transition    Transition     `json:"transition"`
	Layer         Layer          `json:"layer"`
	Upsell        bool           `json:"upsell"`
	PremiumBanner bool           `json:"premium_banner"`
	Engagement    int            `json:"engagement"`
	Fallback      bool           `json:"fallback"`
}

// HandleUserTurn runs one turn: topic detection, phase update, upsell
// decision, layer choice, completion call, then appends the user and
// assistant messages. A failed completion is replaced by a fallback reply and
// the turn still counts.
func (e *Engine) HandleUserTurn(ctx context.Context, s *domain.Session, text string) (*TurnResult, error) {
	s.Normalize()
	now := e.now()
	if err := e.consumeDailyQuestion(s, now); err != nil {
		return nil, err
	}

	tr := e.phases.Advance(s, text)
	upsell := e.upsell.Evaluate(s, text)
	layer := DecideLayer(s.ConversationDepth, DetectIntent(text).Urgency)

	kind := domain.KindChat
	var reply string
	if e.layered && layer == LayerPremiumGate {
		reply = PremiumGateMessage
	} else {
		reply, kind = e.complete(ctx, s, text, layer)
	}

	userMsg := domain.NewMessage(domain.RoleUser, domain.KindChat, text, s.Guide, now)
	userMsg.Topic, userMsg.Phase = s.CurrentTopic, s.Phase
	assistantMsg := domain.NewMessage(domain.RoleAssistant, kind, reply, s.Guide, e.now())
	assistantMsg.Topic, assistantMsg.Phase, assistantMsg.Upsell = s.CurrentTopic, s.Phase, upsell
	s.Append(userMsg, assistantMsg)
	s.UpdatedAt = assistantMsg.CreatedAt

	res := &TurnResult{
		User:          userMsg,
		Assistant:     assistantMsg,
		Transition:    tr,
		Layer:         layer,
		Upsell:        upsell,
		PremiumBanner: ShouldShowPremiumBanner(s),
		Engagement:    EngagementScore(s),
		Fallback:      kind == domain.KindFallback,
	}
	e.log.Info("Turn handled",
		"session_id", s.ID,
		"guide", s.Guide.String(),
		"topic", s.CurrentTopic,
		"phase", int(s.Phase),
		"topic_changed", tr.TopicChanged,
		"layer", layer,
		"upsell", upsell,
		"engagement", res.Engagement,
		"fallback", res.Fallback,
	)
	return res, nil
}

// complete asks the provider for the reply to text. A failed call returns
// the fallback for the layer and KindFallback.
func (e *Engine) complete(ctx context.Context, s *domain.Session, text string, layer Layer) (string, domain.MessageKind) {
	guide := persona.For(s.Guide)
	greet := !s.Greeted[s.Guide]
	in := PromptInput{
		Guide:   guide,
		Phase:   s.Phase,
		Topic:   s.CurrentTopic,
		Profile: s.Profile,
		Greet:   greet,
	}
	req := completion.Request{
		UserPrompt:  text,
		Temperature: guide.Temperature(s.Phase),
		MaxTokens:   e.maxTokens,
	}
	fallback := FallbackMessage
	if l, ok := layers[layer]; ok && e.layered {
		in.Layer = layer
		req.Temperature = l.temperature
		req.MaxTokens = l.maxTokens
		fallback = l.fallback
		if layer == LayerExploration && len(s.Messages) > 0 {
			req.UserPrompt = "Previous context:\n" + previousContext(s.Messages) + "\nQuestion: " + text
		}
	}
	req.SystemPrompt = BuildSystemPrompt(in)

	reply, err := e.provider.Complete(ctx, req)
	if err != nil {
		e.log.Warn("Completion failed, using fallback",
			"error", err,
			"provider", e.provider.Name(),
			"session_id", s.ID,
			"topic", s.CurrentTopic,
			"phase", int(s.Phase),
			"layer", layer,
		)
		return fallback, domain.KindFallback
	}
	if greet {
		s.Greeted[s.Guide] = true
	}
	return reply, domain.KindChat
}

func (e *Engine) consumeDailyQuestion(s *domain.Session, now time.Time) error {
	if e.dailyLimit <= 0 {
		return nil
	}
	today := now.Format(time.DateOnly)
	if s.LastQuestionDate != today {
		s.LastQuestionDate = today
		s.DailyQuestions = 0
	}
	if s.DailyQuestions >= e.dailyLimit {
		return ErrDailyLimit
	}
	s.DailyQuestions++
	return nil
}

// RemainingQuestions returns today's remaining free questions, or -1 when unlimited.
func (e *Engine) RemainingQuestions(s *domain.Session) int {
	if e.dailyLimit <= 0 {
		return -1
	}
	if s.LastQuestionDate != e.now().Format(time.DateOnly) {
		return e.dailyLimit
	}
	return max(e.dailyLimit-s.DailyQuestions, 0)
}

// SelectGuide switches the active persona. Greeting state is per persona, so
// switching back does not greet again.
func (e *Engine) SelectGuide(s *domain.Session, p domain.Persona) error {
	if !p.Valid() {
		return domain.ErrUnknownPersona
	}
	s.Guide = p
	s.UpdatedAt = e.now()
	return nil
}
