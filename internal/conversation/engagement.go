package conversation

import (
	"strings"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

// Intent is the business-intent reading of one message.
type Intent struct {
	Intents    []string `json:"intents"`
	Urgency    int      `json:"urgency"`
	IsBusiness bool     `json:"is_business"`
	Complex    bool     `json:"complex"`
}

type intentRow struct {
	name  string
	words []string
}

var businessIntents = []intentRow{
	{"launch_timing", []string{"when", "launch", "start", "begin", "timing", "muhurat"}},
	{"pricing", []string{"price", "charge", "cost", "rate", "fee", "pricing"}},
	{"market", []string{"market", "niche", "audience", "customer", "segment"}},
	{"team", []string{"hire", "team", "partner", "cofounder", "employee"}},
	{"funding", []string{"investor", "funding", "raise", "capital", "investment"}},
	{"growth", []string{"grow", "scale", "expand", "increase", "boost"}},
	{"problem", []string{"problem", "issue", "challenge", "stuck", "difficult"}},
	{"decision", []string{"should", "decide", "choice", "option", "vs"}},
}

// Urgency words match whole words only; "now" must not fire on "know".
var urgencyWords = newWordMatcher([]string{"urgent", "immediately", "now", "today", "tomorrow", "asap", "quickly"})

const (
	maxUrgency       = 3
	complexWordCount = 20
)

// DetectIntent classifies a message by business intent and urgency.
func DetectIntent(text string) Intent {
	lower := strings.ToLower(text)
	var in Intent
	for _, row := range businessIntents {
		if containsAny(lower, row.words) {
			in.Intents = append(in.Intents, row.name)
		}
	}
	in.IsBusiness = len(in.Intents) > 0
	in.Urgency = min(urgencyWords.Count(lower), maxUrgency)
	in.Complex = len(strings.Fields(text)) > complexWordCount
	return in
}

// Engagement score weights.
const (
	perMessage      = 10
	perDepth        = 20
	businessBonus   = 15
	perUrgency      = 10
	recentWindow    = 5
	maxEngagement   = 100
	premiumScore    = 50
	premiumMessages = 6
)

// EngagementScore estimates engagement from message count, conversation
// depth and the intent of the most recent user messages. Always in [0, 100].
func EngagementScore(s *domain.Session) int {
	score := perMessage*len(s.Messages) + perDepth*s.ConversationDepth

	start := max(len(s.Messages)-recentWindow, 0)
	for _, m := range s.Messages[start:] {
		if m.Role != domain.RoleUser {
			continue
		}
		in := DetectIntent(m.Content)
		if in.IsBusiness {
			score += businessBonus
		}
		score += perUrgency * in.Urgency
	}
	return clamp(score, 0, maxEngagement)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// ShouldShowPremiumBanner reports whether the one-time premium prompt is due
// and marks it shown.
func ShouldShowPremiumBanner(s *domain.Session) bool {
	if s.PremiumShown {
		return false
	}
	if EngagementScore(s) <= premiumScore || len(s.Messages) <= premiumMessages {
		return false
	}
	s.PremiumShown = true
	return true
}
