package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/cosmic-guide/internal/completion"
	"github.com/ashureev/cosmic-guide/internal/conversation"
	"github.com/ashureev/cosmic-guide/internal/domain"
	"github.com/ashureev/cosmic-guide/internal/render"
)

type stubProvider struct {
	reply string
	err   error
}

func (p stubProvider) Complete(context.Context, completion.Request) (string, error) {
	return p.reply, p.err
}

func (p stubProvider) Name() string { return "stub" }

func newTestREPL(t *testing.T, p completion.Provider, dailyLimit int) *repl {
	t.Helper()
	engine, err := conversation.NewEngine(p, conversation.Options{
		DailyLimit: dailyLimit,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	r, err := render.New(render.Options{Width: 70, Style: "notty"})
	require.NoError(t, err)
	return newREPL(context.Background(), engine, r, domain.VedicGuru)
}

func TestREPLSayAdvancesPhase(t *testing.T) {
	r := newTestREPL(t, stubProvider{reply: "Saturn favours patience."}, 0)

	out, err := r.say("Will my career improve?")
	require.NoError(t, err)
	assert.Contains(t, out, "Saturn favours patience.")
	assert.Contains(t, out, "topic career")
	assert.Contains(t, out, "phase 1")
	assert.NotContains(t, out, "questions left")

	out, err = r.say("What remedy should I follow for my career?")
	require.NoError(t, err)
	assert.Contains(t, out, "phase 2")
	assert.Len(t, r.session.Messages, 4)
}

func TestREPLSayValidation(t *testing.T) {
	r := newTestREPL(t, stubProvider{reply: "ok"}, 0)
	_, err := r.say("   ")
	require.Error(t, err)
	assert.Empty(t, r.session.Messages)
}

func TestREPLDailyLimit(t *testing.T) {
	r := newTestREPL(t, stubProvider{reply: "ok"}, 1)

	out, err := r.say("hello")
	require.NoError(t, err)
	assert.Contains(t, out, "0 questions left today")

	_, err = r.say("hello again")
	require.ErrorIs(t, err, conversation.ErrDailyLimit)
	assert.Len(t, r.session.Messages, 2)
}

func TestREPLFallback(t *testing.T) {
	r := newTestREPL(t, stubProvider{err: errors.New("down")}, 0)
	out, err := r.say("hello")
	require.NoError(t, err)
	assert.Contains(t, out, "stars are clouded")
	assert.Equal(t, domain.KindFallback, r.session.Messages[1].Kind)
}

func TestREPLSelectGuide(t *testing.T) {
	r := newTestREPL(t, stubProvider{reply: "ok"}, 0)

	out, err := r.selectGuide("mystic_healer")
	require.NoError(t, err)
	assert.Contains(t, out, domain.MysticHealer.Name())
	assert.Equal(t, domain.MysticHealer, r.session.Guide)

	_, err = r.selectGuide("tarot_reader")
	require.ErrorIs(t, err, domain.ErrUnknownPersona)
	assert.Equal(t, domain.MysticHealer, r.session.Guide)
}

func TestREPLCommand(t *testing.T) {
	r := newTestREPL(t, stubProvider{reply: "Launch in spring."}, 0)

	list, err := r.command("")
	require.NoError(t, err)
	assert.Contains(t, list, "launch_timing")

	out, err := r.command("launch_timing")
	require.NoError(t, err)
	assert.Contains(t, out, "Launch in spring.")
	assert.Equal(t, domain.PhaseOverview, r.session.Phase)

	_, err = r.command("nope")
	require.ErrorIs(t, err, conversation.ErrUnknownCommand)
}

func TestREPLTranscriptAndReset(t *testing.T) {
	r := newTestREPL(t, stubProvider{reply: "ok"}, 0)
	assert.Equal(t, "No messages yet.", r.transcript())

	r.welcome(domain.Profile{Name: "Asha", Challenge: "my startup"})
	_, err := r.say("hello")
	require.NoError(t, err)
	assert.Contains(t, r.transcript(), "Welcome Asha")

	r.reset()
	assert.Empty(t, r.session.Messages)
	assert.Equal(t, "Asha", r.session.Profile.Name)
}

func TestPrintTopic(t *testing.T) {
	var buf bytes.Buffer
	printTopic(&buf, conversation.NewTopicDetector(conversation.DefaultKeywords()), "my salary and money")
	assert.Contains(t, buf.String(), "topic: money")
}

func TestNewREPLUsesClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = orig })

	r := newTestREPL(t, stubProvider{reply: "ok"}, 0)
	assert.Equal(t, fixed, r.session.CreatedAt)
	assert.Equal(t, localUser, r.session.UserID)
}
