package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

func sessionAt(topic domain.Topic, repeats int, phase domain.Phase) *domain.Session {
	s := domain.NewSession("u:t", "u", domain.VedicGuru, time.Now())
	s.CurrentTopic = topic
	s.TopicHistory[topic] = repeats
	s.Phase = phase
	s.ConversationDepth = repeats
	return s
}

func TestUpsellQualifies(t *testing.T) {
	u, err := NewUpsellTrigger(DefaultKeywords(), UpsellAlways, "")
	require.NoError(t, err)

	tests := []struct {
		name string
		s    *domain.Session
		text string
		want bool
	}{
		{"critical keyword in overview", sessionAt(domain.TopicMoney, 1, domain.PhaseOverview), "I am stuck", true},
		{"critical keyword is case-insensitive", sessionAt(domain.TopicLove, 1, domain.PhaseOverview), "URGENT please", true},
		{"repeat topic in remedies phase", sessionAt(domain.TopicCareer, 2, domain.PhaseRemediesOnRequest), "tell me more", true},
		{"repeat topic in detailed plan", sessionAt(domain.TopicCareer, 3, domain.PhaseDetailedPlan), "tell me more", true},
		{"repeat topic in overview", sessionAt(domain.TopicCareer, 2, domain.PhaseOverview), "tell me more", false},
		{"single mention in remedies phase", sessionAt(domain.TopicCareer, 1, domain.PhaseRemediesOnRequest), "tell me more", false},
		{"explicit gemstone ask", sessionAt(domain.TopicCareer, 1, domain.PhaseOverview), "which gemstone suits me", true},
		{"nothing qualifies", sessionAt(domain.TopicHealth, 1, domain.PhaseOverview), "tell me more", false},
		{"management is not gem", sessionAt(domain.TopicCareer, 1, domain.PhaseOverview), "What does Saturn say about my team management at work?", false},
		{"engagement is not gem", sessionAt(domain.TopicLove, 1, domain.PhaseOverview), "is my engagement blessed", false},
		{"debtor is not debt", sessionAt(domain.TopicMoney, 1, domain.PhaseOverview), "a debtor owes me money", false},
		{"phrase critical keyword", sessionAt(domain.TopicCareer, 1, domain.PhaseOverview), "I just lost my job", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, u.Qualifies(tt.s, tt.text))
		})
	}
}

func TestCriticalKeywordAlwaysQualifies(t *testing.T) {
	u, err := NewUpsellTrigger(DefaultKeywords(), UpsellAlways, "")
	require.NoError(t, err)

	for _, word := range DefaultKeywords().Critical {
		for _, phase := range []domain.Phase{domain.PhaseOverview, domain.PhaseRemediesOnRequest, domain.PhaseDetailedPlan} {
			s := sessionAt(domain.TopicFamily, 1, phase)
			assert.True(t, u.Qualifies(s, "well, "+word+" again"), "%q in phase %d", word, phase)
		}
	}
}

func TestUpsellPolicies(t *testing.T) {
	kw := DefaultKeywords()

	t.Run("always", func(t *testing.T) {
		u, err := NewUpsellTrigger(kw, UpsellAlways, "")
		require.NoError(t, err)
		s := sessionAt(domain.TopicMoney, 1, domain.PhaseOverview)
		assert.True(t, u.Evaluate(s, "urgent"))
		assert.True(t, u.Evaluate(s, "urgent"))
		assert.Equal(t, 2, s.UpsellShown[domain.TopicMoney])
	})

	t.Run("once per session", func(t *testing.T) {
		u, err := NewUpsellTrigger(kw, UpsellOncePerSession, "")
		require.NoError(t, err)
		s := sessionAt(domain.TopicMoney, 1, domain.PhaseOverview)
		assert.True(t, u.Evaluate(s, "urgent"))
		assert.False(t, u.Evaluate(s, "urgent"))
		s.CurrentTopic = domain.TopicLove
		assert.False(t, u.Evaluate(s, "urgent"))
	})

	t.Run("once per topic", func(t *testing.T) {
		u, err := NewUpsellTrigger(kw, UpsellOncePerTopic, "")
		require.NoError(t, err)
		s := sessionAt(domain.TopicMoney, 1, domain.PhaseOverview)
		assert.True(t, u.Evaluate(s, "urgent"))
		assert.False(t, u.Evaluate(s, "urgent"))
		s.CurrentTopic = domain.TopicLove
		assert.True(t, u.Evaluate(s, "urgent"))
	})

	t.Run("not qualifying does not record", func(t *testing.T) {
		u, err := NewUpsellTrigger(kw, UpsellOncePerSession, "")
		require.NoError(t, err)
		s := sessionAt(domain.TopicMoney, 1, domain.PhaseOverview)
		assert.False(t, u.Evaluate(s, "tell me more"))
		assert.Empty(t, s.UpsellShown)
	})
}

func TestParseUpsellPolicy(t *testing.T) {
	p, err := ParseUpsellPolicy("")
	require.NoError(t, err)
	assert.Equal(t, UpsellAlways, p)

	p, err = ParseUpsellPolicy(" Once_Per_Topic ")
	require.NoError(t, err)
	assert.Equal(t, UpsellOncePerTopic, p)

	_, err = ParseUpsellPolicy("sometimes")
	assert.Error(t, err)
}

func TestUpsellRule(t *testing.T) {
	u, err := NewUpsellTrigger(DefaultKeywords(), UpsellAlways, `depth >= 3 && topic == "career"`)
	require.NoError(t, err)

	assert.True(t, u.Qualifies(sessionAt(domain.TopicCareer, 3, domain.PhaseOverview), "tell me more"))
	assert.False(t, u.Qualifies(sessionAt(domain.TopicCareer, 1, domain.PhaseOverview), "tell me more"))
	assert.False(t, u.Qualifies(sessionAt(domain.TopicLove, 3, domain.PhaseOverview), "tell me more"))
}

func TestUpsellRuleMatchesMessage(t *testing.T) {
	u, err := NewUpsellTrigger(DefaultKeywords(), UpsellAlways, `message.contains("premium")`)
	require.NoError(t, err)

	assert.True(t, u.Qualifies(sessionAt(domain.TopicCareer, 1, domain.PhaseOverview), "Show me the PREMIUM reading"))
}

func TestUpsellRuleErrors(t *testing.T) {
	_, err := NewUpsellTrigger(DefaultKeywords(), UpsellAlways, `depth +`)
	assert.Error(t, err)

	_, err = NewUpsellTrigger(DefaultKeywords(), UpsellAlways, `depth + 1`)
	assert.Error(t, err)

	_, err = NewUpsellTrigger(DefaultKeywords(), UpsellAlways, `unknown_var > 1`)
	assert.Error(t, err)
}
