package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/ashureev/cosmic-guide/internal/conversation"
	"github.com/ashureev/cosmic-guide/internal/domain"
	"github.com/ashureev/cosmic-guide/internal/render"
)

const localUser = "local"

// repl holds one terminal conversation. The shell only forwards lines to it.
type repl struct {
	ctx     context.Context
	engine  *conversation.Engine
	render  *render.Renderer
	session *domain.Session
}

func newREPL(ctx context.Context, engine *conversation.Engine, r *render.Renderer, guide domain.Persona) *repl {
	if ctx == nil {
		ctx = context.Background()
	}
	id := localUser + ":" + uuid.NewString()
	return &repl{
		ctx:     ctx,
		engine:  engine,
		render:  r,
		session: domain.NewSession(id, localUser, guide, timeNow()),
	}
}

// say runs one chat turn and renders the reply with any banners.
func (r *repl) say(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("message is required")
	}
	res, err := r.engine.HandleUserTurn(r.ctx, r.session, text)
	if err != nil {
		if errors.Is(err, conversation.ErrDailyLimit) {
			return "", fmt.Errorf("%w, come back tomorrow", err)
		}
		return "", err
	}

	var b strings.Builder
	b.WriteString(r.render.Message(res.Assistant))
	if res.PremiumBanner {
		b.WriteString(r.render.PremiumBanner())
		b.WriteString("\n")
	}
	b.WriteString(r.render.Status(r.session))
	if n := r.engine.RemainingQuestions(r.session); n >= 0 {
		fmt.Fprintf(&b, " · %d questions left today", n)
	}
	return b.String(), nil
}

func (r *repl) command(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return listCommands(), nil
	}
	res, err := r.engine.RunCommand(r.ctx, r.session, name)
	if err != nil {
		if errors.Is(err, conversation.ErrUnknownCommand) {
			return "", fmt.Errorf("%w\n%s", err, listCommands())
		}
		return "", err
	}
	return r.render.Message(res.Assistant), nil
}

func (r *repl) selectGuide(name string) (string, error) {
	p, err := domain.ParsePersona(name)
	if err != nil {
		return "", err
	}
	if err := r.engine.SelectGuide(r.session, p); err != nil {
		return "", err
	}
	return "Now talking to " + p.Name(), nil
}

func (r *repl) welcome(p domain.Profile) string {
	return r.render.Message(r.engine.Welcome(r.session, p))
}

func (r *repl) status() string {
	return r.render.Status(r.session)
}

func (r *repl) transcript() string {
	if len(r.session.Messages) == 0 {
		return "No messages yet."
	}
	return r.render.Transcript(r.session)
}

func (r *repl) reset() string {
	r.session.Clear()
	r.session.UpdatedAt = timeNow()
	return "Conversation cleared."
}

func listCommands() string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, c := range conversation.Commands() {
		fmt.Fprintf(&b, "\n  %-16s %s", c.Name, c.Label)
	}
	return b.String()
}

func printTopic(w io.Writer, d *conversation.TopicDetector, phrase string) {
	fmt.Fprintf(w, "topic: %s\n", d.Detect(phrase))
	for _, s := range d.Scores(phrase) {
		fmt.Fprintf(w, "  %-10s %d\n", s.Topic, s.Score)
	}
}
