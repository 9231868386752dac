package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/cosmic-guide/internal/completion"
	"github.com/ashureev/cosmic-guide/internal/domain"
	"github.com/ashureev/cosmic-guide/internal/persona"
)

// Command is one entry of the business command centre.
type Command struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	prompt string
}

var commands = []Command{
	{
		Name:   "launch_timing",
		Label:  "Launch Timing",
		prompt: "Identify the most favourable launch windows in the next 90 days based on the user's chart and current transits.",
	},
	{
		Name:   "pricing",
		Label:  "Pricing Strategy",
		prompt: "Suggest a pricing approach and the best period to announce or change prices.",
	},
	{
		Name:   "partnership",
		Label:  "Partnership Compatibility",
		prompt: "Describe what kind of partner complements this chart and when to sign agreements.",
	},
	{
		Name:   "market_analysis",
		Label:  "Market Analysis",
		prompt: "Describe the audience and niche this chart is naturally suited to serve.",
	},
	{
		Name:   "funding",
		Label:  "Funding Timing",
		prompt: "Identify favourable periods to approach investors or raise capital, and what to avoid.",
	},
	{
		Name:   "team_hiring",
		Label:  "Team Hiring",
		prompt: "Advise on hiring timing and the qualities to look for in the next key hires.",
	},
}

// Commands lists the command centre entries.
func Commands() []Command {
	return append([]Command(nil), commands...)
}

func lookupCommand(name string) (Command, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range commands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// CommandResult is the outcome of a command centre request.
type CommandResult struct {
	Command   Command        `json:"command"`
	User      domain.Message `json:"user"`
	Assistant domain.Message `json:"assistant"`
	Fallback  bool           `json:"fallback"`
}

// RunCommand answers a command centre request. It appends an "Analyze" user
// message and the reply but leaves topic and phase untouched.
func (e *Engine) RunCommand(ctx context.Context, s *domain.Session, name string) (*CommandResult, error) {
	cmd, ok := lookupCommand(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	s.Normalize()
	now := e.now()
	guide := persona.For(s.Guide)

	system := guide.Voice + "\n\nUser profile:\n" + s.Profile.Summary() +
		"\n\nAnswer as a focused strategic analysis with clear sections."
	reply, err := e.provider.Complete(ctx, completion.Request{
		SystemPrompt: system,
		UserPrompt:   cmd.prompt,
		Temperature:  guide.Temperature(domain.PhaseRemediesOnRequest),
		MaxTokens:    e.maxTokens,
	})
	kind := domain.KindCommand
	if err != nil {
		e.log.Warn("Command completion failed, using fallback", "error", err, "command", cmd.Name, "session_id", s.ID)
		reply = FallbackMessage
		kind = domain.KindFallback
	}

	userMsg := domain.NewMessage(domain.RoleUser, domain.KindCommand, "Analyze: "+cmd.Label, s.Guide, now)
	assistantMsg := domain.NewMessage(domain.RoleAssistant, kind, reply, s.Guide, e.now())
	s.Append(userMsg, assistantMsg)
	s.UpdatedAt = assistantMsg.CreatedAt

	return &CommandResult{
		Command:   cmd,
		User:      userMsg,
		Assistant: assistantMsg,
		Fallback:  kind == domain.KindFallback,
	}, nil
}

const defaultChallenge = "your goals"

// Welcome stores the onboarding profile and appends the welcome insight.
func (e *Engine) Welcome(s *domain.Session, p domain.Profile) domain.Message {
	s.Normalize()
	s.Profile = p
	challenge := strings.TrimSpace(p.Challenge)
	if challenge == "" {
		challenge = defaultChallenge
	}
	content := fmt.Sprintf("Welcome %s. Based on your birth chart, the next 21 days are crucial for %s. "+
		"Mercury's position suggests unexpected opportunities approaching.", domain.Field(p.Name), challenge)

	msg := domain.NewMessage(domain.RoleAssistant, domain.KindWelcome, content, s.Guide, e.now())
	s.Append(msg)
	s.UpdatedAt = msg.CreatedAt
	return msg
}
