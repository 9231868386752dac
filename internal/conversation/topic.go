package conversation

import (
	"strings"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

// TopicDetector maps free text to one topic label.
type TopicDetector struct {
	topics []TopicTriggers
}

// NewTopicDetector builds a detector over the topic table in kw.
// Table order is the tie-break priority.
func NewTopicDetector(kw Keywords) *TopicDetector {
	return &TopicDetector{topics: kw.Topics}
}

// Detect returns the topic with the strictly highest trigger count.
// A zero score returns TopicGeneral; ties go to the earlier topic.
func (d *TopicDetector) Detect(text string) domain.Topic {
	lower := strings.ToLower(text)
	best := domain.TopicGeneral
	bestScore := 0
	for _, t := range d.topics {
		if score := countMatches(lower, t.Triggers); score > bestScore {
			best, bestScore = t.Name, score
		}
	}
	return best
}

// Scores returns the per-topic trigger count, in table order.
func (d *TopicDetector) Scores(text string) []TopicScore {
	lower := strings.ToLower(text)
	out := make([]TopicScore, 0, len(d.topics))
	for _, t := range d.topics {
		out = append(out, TopicScore{Topic: t.Name, Score: countMatches(lower, t.Triggers)})
	}
	return out
}

// TopicScore is one topic's trigger count for a message.
type TopicScore struct {
	Topic domain.Topic `json:"topic"`
	Score int          `json:"score"`
}
