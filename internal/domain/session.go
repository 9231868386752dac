package domain

import (
	"time"
)

// Phase is the disclosure depth of advice within one topic thread.
type Phase int

const (
	PhaseOverview          Phase = 1
	PhaseRemediesOnRequest Phase = 2
	PhaseDetailedPlan      Phase = 3
)

// String returns the phase name used in logs and prompts.
func (p Phase) String() string {
	switch p {
	case PhaseOverview:
		return "overview"
	case PhaseRemediesOnRequest:
		return "remedies_on_request"
	case PhaseDetailedPlan:
		return "detailed_plan"
	default:
		return "unknown"
	}
}

// Topic is a coarse subject label for a user message.
type Topic string

const (
	TopicMoney     Topic = "money"
	TopicLove      Topic = "love"
	TopicCareer    Topic = "career"
	TopicHealth    Topic = "health"
	TopicFamily    Topic = "family"
	TopicEducation Topic = "education"
	TopicSpiritual Topic = "spiritual"
	TopicGeneral   Topic = "general"
)

// Session is one browsing session's accumulated conversation state.
// It is owned by a single caller at a time; see Clone for handing copies out.
type Session struct {
	ID                string           `json:"id"`
	UserID            string           `json:"user_id"`
	Messages          []Message        `json:"messages"`
	TopicHistory      map[Topic]int    `json:"topic_history"`
	CurrentTopic      Topic            `json:"current_topic,omitempty"`
	Phase             Phase            `json:"phase"`
	Greeted           map[Persona]bool `json:"greeted"`
	Guide             Persona          `json:"guide"`
	Profile           Profile          `json:"profile"`
	ConversationDepth int              `json:"conversation_depth"`
	UpsellShown       map[Topic]int    `json:"upsell_shown"`
	PremiumShown      bool             `json:"premium_shown"`
	DailyQuestions    int              `json:"daily_questions"`
	LastQuestionDate  string           `json:"last_question_date,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NewSession returns an empty session in the overview phase.
func NewSession(id, userID string, guide Persona, now time.Time) *Session {
	s := &Session{
		ID:        id,
		UserID:    userID,
		Guide:     guide,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Clear()
	return s
}

// Clear discards the conversation while keeping identity, guide and profile.
func (s *Session) Clear() {
	s.Messages = nil
	s.TopicHistory = make(map[Topic]int)
	s.CurrentTopic = ""
	s.Phase = PhaseOverview
	s.Greeted = make(map[Persona]bool)
	s.ConversationDepth = 0
	s.UpsellShown = make(map[Topic]int)
	s.PremiumShown = false
}

// Normalize fills maps and the phase after decoding a stored session.
func (s *Session) Normalize() {
	if s.TopicHistory == nil {
		s.TopicHistory = make(map[Topic]int)
	}
	if s.Greeted == nil {
		s.Greeted = make(map[Persona]bool)
	}
	if s.UpsellShown == nil {
		s.UpsellShown = make(map[Topic]int)
	}
	if s.Phase < PhaseOverview || s.Phase > PhaseDetailedPlan {
		s.Phase = PhaseOverview
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	c.TopicHistory = make(map[Topic]int, len(s.TopicHistory))
	for k, v := range s.TopicHistory {
		c.TopicHistory[k] = v
	}
	c.Greeted = make(map[Persona]bool, len(s.Greeted))
	for k, v := range s.Greeted {
		c.Greeted[k] = v
	}
	c.UpsellShown = make(map[Topic]int, len(s.UpsellShown))
	for k, v := range s.UpsellShown {
		c.UpsellShown[k] = v
	}
	return &c
}

// Append adds messages in chronological order.
func (s *Session) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// UserMessageCount returns how many messages were sent by the user.
func (s *Session) UserMessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}
