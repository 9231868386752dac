package conversation

import (
	"strings"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

// Transition is the phase controller's decision for one user turn.
type Transition struct {
	Detected     domain.Topic `json:"detected"`
	Topic        domain.Topic `json:"topic"`
	From         domain.Phase `json:"from"`
	Phase        domain.Phase `json:"phase"`
	TopicChanged bool         `json:"topic_changed"`
	Remedy       bool         `json:"remedy"`
	Specificity  bool         `json:"specificity"`
}

// PhaseController decides the disclosure phase for the next reply.
type PhaseController struct {
	detector    *TopicDetector
	remedy      wordMatcher
	specificity wordMatcher
}

// NewPhaseController builds a controller from the trigger table.
func NewPhaseController(detector *TopicDetector, kw Keywords) *PhaseController {
	return &PhaseController{
		detector:    detector,
		remedy:      newWordMatcher(kw.Remedy),
		specificity: newWordMatcher(kw.Specificity),
	}
}

// Decide computes the next topic and phase without touching the session.
//
// A message with no topic triggers continues the current topic, so a follow-up
// like "what mantra should I use?" stays on the thread it answers. A topic
// change resets to Overview and skips the trigger checks for that turn.
// Otherwise the remedy check (Overview only) and the specificity check
// (Overview or RemediesOnRequest) each advance one step.
func (c *PhaseController) Decide(currentTopic domain.Topic, phase domain.Phase, text string) Transition {
	detected := c.detector.Detect(text)
	tr := Transition{Detected: detected, Topic: detected, From: phase}

	if detected == domain.TopicGeneral && currentTopic != "" {
		tr.Topic = currentTopic
	}
	if tr.Topic != currentTopic {
		tr.TopicChanged = true
		tr.Phase = domain.PhaseOverview
		return tr
	}

	lower := strings.ToLower(text)
	next := phase
	if next == domain.PhaseOverview && c.remedy.Match(lower) {
		tr.Remedy = true
		next++
	}
	if next < domain.PhaseDetailedPlan && phase < domain.PhaseDetailedPlan && c.specificity.Match(lower) {
		tr.Specificity = true
		next++
	}
	tr.Phase = next
	return tr
}

// Advance applies Decide to the session: topic, phase, topic history and depth.
func (c *PhaseController) Advance(s *domain.Session, text string) Transition {
	tr := c.Decide(s.CurrentTopic, s.Phase, text)
	s.CurrentTopic = tr.Topic
	s.Phase = tr.Phase
	if s.TopicHistory == nil {
		s.TopicHistory = make(map[domain.Topic]int)
	}
	s.TopicHistory[tr.Topic]++
	s.ConversationDepth++
	return tr
}
