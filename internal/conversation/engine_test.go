package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/cosmic-guide/internal/completion"
	"github.com/ashureev/cosmic-guide/internal/domain"
)

type fakeProvider struct {
	mu    sync.Mutex
	reqs  []completion.Request
	reply string
	err   error
}

func (f *fakeProvider) Complete(_ context.Context, req completion.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) last() completion.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestEngine(t *testing.T, p completion.Provider, opts Options) *Engine {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e, err := NewEngine(p, opts)
	require.NoError(t, err)
	return e
}

func TestHandleUserTurnScenario(t *testing.T) {
	p := &fakeProvider{reply: "The planets favour you."}
	e := newTestEngine(t, p, Options{})
	s := domain.NewSession("u:t", "u", domain.CosmicStrategist, time.Now())
	ctx := context.Background()

	res, err := e.HandleUserTurn(ctx, s, "When should I launch my business?")
	require.NoError(t, err)
	assert.Equal(t, domain.TopicCareer, s.CurrentTopic)
	assert.Equal(t, domain.PhaseOverview, s.Phase)
	assert.Equal(t, 1, s.TopicHistory[domain.TopicCareer])
	assert.False(t, res.Upsell)
	assert.Equal(t, "The planets favour you.", res.Assistant.Content)
	assert.Equal(t, domain.CosmicStrategist, res.Assistant.Guide)
	assert.InDelta(t, 0.7, p.last().Temperature, 1e-9)

	res, err = e.HandleUserTurn(ctx, s, "What mantra should I use?")
	require.NoError(t, err)
	assert.Equal(t, domain.TopicCareer, s.CurrentTopic)
	assert.Equal(t, domain.PhaseRemediesOnRequest, s.Phase)
	assert.Equal(t, 2, s.TopicHistory[domain.TopicCareer])
	assert.True(t, res.Upsell)
	assert.True(t, res.Assistant.Upsell)
	assert.InDelta(t, 0.6, p.last().Temperature, 1e-9)
	assert.Contains(t, p.last().SystemPrompt, "Disclosure phase 2")

	res, err = e.HandleUserTurn(ctx, s, "Tell me about my love life")
	require.NoError(t, err)
	assert.True(t, res.Transition.TopicChanged)
	assert.Equal(t, domain.TopicLove, s.CurrentTopic)
	assert.Equal(t, domain.PhaseOverview, s.Phase)
	assert.Equal(t, 1, s.TopicHistory[domain.TopicLove])

	require.Len(t, s.Messages, 6)
	for i, m := range s.Messages {
		want := domain.RoleUser
		if i%2 == 1 {
			want = domain.RoleAssistant
		}
		assert.Equal(t, want, m.Role, "message %d", i)
	}
}

func TestHandleUserTurnFallsBackOnCompletionError(t *testing.T) {
	p := &fakeProvider{err: errors.New("connection refused")}
	e := newTestEngine(t, p, Options{})
	s := domain.NewSession("u:t", "u", domain.VedicGuru, time.Now())

	res, err := e.HandleUserTurn(context.Background(), s, "I need a remedy for my career")
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, FallbackMessage, res.Assistant.Content)
	assert.Equal(t, domain.KindFallback, res.Assistant.Kind)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, domain.RoleUser, s.Messages[0].Role)
	assert.Equal(t, FallbackMessage, s.Messages[1].Content)
	assert.Equal(t, domain.TopicCareer, s.CurrentTopic)
	assert.Equal(t, 1, s.TopicHistory[domain.TopicCareer])
}

func TestUnconfiguredProviderFallsBack(t *testing.T) {
	e := newTestEngine(t, nil, Options{})
	s := domain.NewSession("u:t", "u", domain.VedicGuru, time.Now())

	res, err := e.HandleUserTurn(context.Background(), s, "hello")
	require.NoError(t, err)
	assert.Equal(t, FallbackMessage, res.Assistant.Content)
}

func TestSalutationOncePerPersona(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	e := newTestEngine(t, p, Options{})
	s := domain.NewSession("u:t", "u", domain.VedicGuru, time.Now())
	ctx := context.Background()

	_, err := e.HandleUserTurn(ctx, s, "hello")
	require.NoError(t, err)
	assert.Contains(t, p.last().SystemPrompt, "Namaste, dear seeker.")

	_, err = e.HandleUserTurn(ctx, s, "and my career?")
	require.NoError(t, err)
	assert.NotContains(t, p.last().SystemPrompt, "Namaste, dear seeker.")

	require.NoError(t, e.SelectGuide(s, domain.MysticHealer))
	_, err = e.HandleUserTurn(ctx, s, "and my health?")
	require.NoError(t, err)
	assert.Contains(t, p.last().SystemPrompt, "Welcome, beautiful soul.")

	require.NoError(t, e.SelectGuide(s, domain.VedicGuru))
	_, err = e.HandleUserTurn(ctx, s, "back to career")
	require.NoError(t, err)
	assert.NotContains(t, p.last().SystemPrompt, "Open with the salutation")
}

func TestGreetingNotConsumedByFallback(t *testing.T) {
	p := &fakeProvider{err: errors.New("timeout")}
	e := newTestEngine(t, p, Options{})
	s := domain.NewSession("u:t", "u", domain.VedicGuru, time.Now())
	ctx := context.Background()

	_, err := e.HandleUserTurn(ctx, s, "hello")
	require.NoError(t, err)
	assert.False(t, s.Greeted[domain.VedicGuru])

	p.err = nil
	p.reply = "ok"
	_, err = e.HandleUserTurn(ctx, s, "hello again")
	require.NoError(t, err)
	assert.Contains(t, p.last().SystemPrompt, "Open with the salutation")
	assert.True(t, s.Greeted[domain.VedicGuru])
}

func TestSystemPromptCarriesProfile(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	e := newTestEngine(t, p, Options{})
	s := domain.NewSession("u:t", "u", domain.VedicGuru, time.Now())
	s.Profile = domain.Profile{Name: "Meera", DateOfBirth: "1992-08-15", PlaceOfBirth: "Pune"}

	_, err := e.HandleUserTurn(context.Background(), s, "hello")
	require.NoError(t, err)

	prompt := p.last().SystemPrompt
	assert.Contains(t, prompt, "Name: Meera")
	assert.Contains(t, prompt, "Time of birth: unknown")
	assert.Contains(t, prompt, "Place of birth: Pune")
	assert.Equal(t, "hello", p.last().UserPrompt)
}

func TestDailyLimit(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, &fakeProvider{reply: "ok"}, Options{DailyLimit: 2, Now: c.now})
	s := domain.NewSession("u:t", "u", domain.VedicGuru, c.t)
	ctx := context.Background()

	assert.Equal(t, 2, e.RemainingQuestions(s))
	for i := 0; i < 2; i++ {
		_, err := e.HandleUserTurn(ctx, s, "hello")
		require.NoError(t, err)
	}
	assert.Equal(t, 0, e.RemainingQuestions(s))

	_, err := e.HandleUserTurn(ctx, s, "hello")
	require.ErrorIs(t, err, ErrDailyLimit)
	assert.Len(t, s.Messages, 4, "rejected turn must not be recorded")
	assert.Equal(t, 2, s.ConversationDepth)

	c.t = c.t.Add(24 * time.Hour)
	assert.Equal(t, 2, e.RemainingQuestions(s))
	_, err = e.HandleUserTurn(ctx, s, "hello")
	require.NoError(t, err)
}

func TestUnlimitedQuestions(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{reply: "ok"}, Options{})
	s := domain.NewSession("u:t", "u", domain.VedicGuru, time.Now())
	assert.Equal(t, -1, e.RemainingQuestions(s))
}

func TestSelectGuideRejectsUnknown(t *testing.T) {
	e := newTestEngine(t, nil, Options{})
	s := domain.NewSession("u:t", "u", domain.VedicGuru, time.Now())
	assert.ErrorIs(t, e.SelectGuide(s, domain.Persona(9)), domain.ErrUnknownPersona)
	assert.Equal(t, domain.VedicGuru, s.Guide)
}

func TestRunCommand(t *testing.T) {
	p := &fakeProvider{reply: "Launch on a waxing moon."}
	e := newTestEngine(t, p, Options{})
	s := domain.NewSession("u:t", "u", domain.CosmicStrategist, time.Now())

	res, err := e.RunCommand(context.Background(), s, "launch_timing")
	require.NoError(t, err)
	assert.Equal(t, "Analyze: Launch Timing", res.User.Content)
	assert.Equal(t, "Launch on a waxing moon.", res.Assistant.Content)
	assert.Equal(t, domain.KindCommand, res.Assistant.Kind)
	assert.Len(t, s.Messages, 2)
	assert.Equal(t, domain.Topic(""), s.CurrentTopic, "commands do not touch the topic thread")
	assert.True(t, strings.HasPrefix(p.last().SystemPrompt, "You are The Cosmic Strategist"))

	_, err = e.RunCommand(context.Background(), s, "horoscope")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Len(t, Commands(), 6)
}

func TestWelcome(t *testing.T) {
	e := newTestEngine(t, nil, Options{})
	s := domain.NewSession("u:t", "u", domain.VedicGuru, time.Now())

	msg := e.Welcome(s, domain.Profile{Name: "Arjun", Challenge: "career growth"})
	assert.Equal(t, domain.KindWelcome, msg.Kind)
	assert.Equal(t, "Welcome Arjun. Based on your birth chart, the next 21 days are crucial for career growth. "+
		"Mercury's position suggests unexpected opportunities approaching.", msg.Content)
	assert.Equal(t, "Arjun", s.Profile.Name)
	require.Len(t, s.Messages, 1)

	msg = e.Welcome(s, domain.Profile{})
	assert.Contains(t, msg.Content, "Welcome unknown.")
	assert.Contains(t, msg.Content, "crucial for your goals")
}

func TestDecideLayer(t *testing.T) {
	tests := []struct {
		depth, urgency int
		want           Layer
	}{
		{1, 0, LayerHook},
		{2, 0, LayerExploration},
		{3, 1, LayerExploration},
		{3, 2, LayerHook},
		{4, 0, LayerPremiumGate},
		{9, 3, LayerHook},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DecideLayer(tt.depth, tt.urgency), "depth %d urgency %d", tt.depth, tt.urgency)
	}
}

func TestLayeredReplies(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	e := newTestEngine(t, p, Options{Layered: true, MaxTokens: 600})
	s := domain.NewSession("u:t", "u", domain.CosmicStrategist, time.Now())
	ctx := context.Background()

	res, err := e.HandleUserTurn(ctx, s, "Will my shop do well?")
	require.NoError(t, err)
	assert.Equal(t, LayerHook, res.Layer)
	assert.Equal(t, 60, p.last().MaxTokens)
	assert.InDelta(t, 0.7, p.last().Temperature, 1e-9)
	assert.Contains(t, p.last().SystemPrompt, "30-40 words")
	assert.Equal(t, "Will my shop do well?", p.last().UserPrompt)

	res, err = e.HandleUserTurn(ctx, s, "And what about the next month?")
	require.NoError(t, err)
	assert.Equal(t, LayerExploration, res.Layer)
	assert.Equal(t, 200, p.last().MaxTokens)
	assert.InDelta(t, 0.6, p.last().Temperature, 1e-9)
	assert.Contains(t, p.last().SystemPrompt, "under 150 words")
	assert.Contains(t, p.last().UserPrompt, "Previous context:")
	assert.Contains(t, p.last().UserPrompt, "user: Will my shop do well?")
	assert.Contains(t, p.last().UserPrompt, "Question: And what about the next month?")

	res, err = e.HandleUserTurn(ctx, s, "I need an answer today, right now")
	require.NoError(t, err)
	assert.Equal(t, LayerHook, res.Layer, "urgent messages get a hook")

	calls := len(p.reqs)
	res, err = e.HandleUserTurn(ctx, s, "Tell me everything")
	require.NoError(t, err)
	assert.Equal(t, LayerPremiumGate, res.Layer)
	assert.Equal(t, PremiumGateMessage, res.Assistant.Content)
	assert.Equal(t, domain.KindChat, res.Assistant.Kind)
	assert.False(t, res.Fallback)
	assert.Len(t, p.reqs, calls, "premium gate must not call the provider")
	assert.Len(t, s.Messages, 8)
}

func TestLayeredFallbacks(t *testing.T) {
	p := &fakeProvider{err: errors.New("timeout")}
	e := newTestEngine(t, p, Options{Layered: true})
	s := domain.NewSession("u:t", "u", domain.VedicGuru, time.Now())
	ctx := context.Background()

	res, err := e.HandleUserTurn(ctx, s, "hello")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, layers[LayerHook].fallback, res.Assistant.Content)

	res, err = e.HandleUserTurn(ctx, s, "hello again")
	require.NoError(t, err)
	assert.Equal(t, LayerExploration, res.Layer)
	assert.Equal(t, layers[LayerExploration].fallback, res.Assistant.Content)
}

func TestLayerReportedWhenNotLayered(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	e := newTestEngine(t, p, Options{MaxTokens: 600})
	s := domain.NewSession("u:t", "u", domain.VedicGuru, time.Now())
	s.ConversationDepth = 3

	res, err := e.HandleUserTurn(context.Background(), s, "hello")
	require.NoError(t, err)
	assert.Equal(t, LayerPremiumGate, res.Layer)
	assert.Equal(t, "ok", res.Assistant.Content)
	assert.Equal(t, 600, p.last().MaxTokens)
	assert.NotContains(t, p.last().SystemPrompt, "30-40 words")
}
