package conversation

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

// UpsellPolicy controls how often a qualifying turn actually shows the offer.
type UpsellPolicy string

const (
	// UpsellAlways shows the offer on every qualifying turn.
	UpsellAlways UpsellPolicy = "always"
	// UpsellOncePerSession shows the offer at most once per session.
	UpsellOncePerSession UpsellPolicy = "once_per_session"
	// UpsellOncePerTopic shows the offer at most once per topic.
	UpsellOncePerTopic UpsellPolicy = "once_per_topic"
)

// ParseUpsellPolicy validates a policy name; empty means UpsellAlways.
func ParseUpsellPolicy(s string) (UpsellPolicy, error) {
	switch p := UpsellPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return UpsellAlways, nil
	case UpsellAlways, UpsellOncePerSession, UpsellOncePerTopic:
		return p, nil
	default:
		return "", fmt.Errorf("unknown upsell policy %q", s)
	}
}

// UpsellTrigger decides whether the remedies pack accompanies a reply.
type UpsellTrigger struct {
	critical  wordMatcher
	remedyAsk wordMatcher
	policy    UpsellPolicy
	rule      cel.Program
}

// NewUpsellTrigger builds a trigger. rule is an optional CEL expression
// over topic, phase, repeats, depth and message that returns a bool.
func NewUpsellTrigger(kw Keywords, policy UpsellPolicy, rule string) (*UpsellTrigger, error) {
	if policy == "" {
		policy = UpsellAlways
	}
	u := &UpsellTrigger{
		critical:  newWordMatcher(kw.Critical),
		remedyAsk: newWordMatcher(kw.RemedyAsk),
		policy:    policy,
	}
	if strings.TrimSpace(rule) == "" {
		return u, nil
	}
	prg, err := compileRule(rule)
	if err != nil {
		return nil, err
	}
	u.rule = prg
	return u, nil
}

func compileRule(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("topic", cel.StringType),
		cel.Variable("phase", cel.IntType),
		cel.Variable("repeats", cel.IntType),
		cel.Variable("depth", cel.IntType),
		cel.Variable("message", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create upsell rule env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile upsell rule: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("upsell rule must return bool, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build upsell rule: %w", err)
	}
	return prg, nil
}

// Qualifies is the raw predicate, evaluated after the phase controller ran
// for this turn. It ignores the dedup policy.
func (u *UpsellTrigger) Qualifies(s *domain.Session, text string) bool {
	lower := strings.ToLower(text)
	if u.critical.Match(lower) {
		return true
	}
	if s.CurrentTopic != "" && s.TopicHistory[s.CurrentTopic] >= 2 && s.Phase >= domain.PhaseRemediesOnRequest {
		return true
	}
	if u.remedyAsk.Match(lower) {
		return true
	}
	return u.evalRule(s, text)
}

func (u *UpsellTrigger) evalRule(s *domain.Session, text string) bool {
	if u.rule == nil {
		return false
	}
	out, _, err := u.rule.Eval(map[string]any{
		"topic":   string(s.CurrentTopic),
		"phase":   int64(s.Phase),
		"repeats": int64(s.TopicHistory[s.CurrentTopic]),
		"depth":   int64(s.ConversationDepth),
		"message": strings.ToLower(text),
	})
	if err != nil {
		return false
	}
	v, ok := out.Value().(bool)
	return ok && v
}

// Evaluate applies the predicate and the dedup policy, and records a shown
// offer on the session.
func (u *UpsellTrigger) Evaluate(s *domain.Session, text string) bool {
	if !u.Qualifies(s, text) {
		return false
	}
	switch u.policy {
	case UpsellOncePerSession:
		for _, n := range s.UpsellShown {
			if n > 0 {
				return false
			}
		}
	case UpsellOncePerTopic:
		if s.UpsellShown[s.CurrentTopic] > 0 {
			return false
		}
	}
	if s.UpsellShown == nil {
		s.UpsellShown = make(map[domain.Topic]int)
	}
	s.UpsellShown[s.CurrentTopic]++
	return true
}
