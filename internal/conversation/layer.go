package conversation

import (
	"strings"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

// Layer is the reply depth picked for one turn, independent of the
// disclosure phase: a short hook, a fuller exploration, then a premium gate.
type Layer string

const (
	LayerHook        Layer = "hook"
	LayerExploration Layer = "exploration"
	LayerPremiumGate Layer = "premium_gate"
)

const (
	// hookUrgency is the urgency above which every turn gets a hook.
	hookUrgency = 1
	// premiumGateDepth is the conversation depth at which exploration stops.
	premiumGateDepth = 4
	// contextMessages is how many earlier messages an exploration reply sees.
	contextMessages = 3
)

// PremiumGateMessage is the canned reply once the free exploration is used up.
const PremiumGateMessage = "This requires deep analysis. Your chart shows complex patterns that need " +
	"comprehensive review. Consider our Growth plan for a detailed roadmap."

type layerSettings struct {
	instruction string
	maxTokens   int
	temperature float64
	fallback    string
}

var layers = map[Layer]layerSettings{
	LayerHook: {
		instruction: "Give ONE powerful, specific insight in 30-40 words. Make it surprising if you can. " +
			"Use the present tense. No fluff.",
		maxTokens:   60,
		temperature: 0.7,
		fallback:    "The cosmic patterns suggest examining this from a different angle. Let me analyze further...",
	},
	LayerExploration: {
		instruction: "Give a detailed analysis: three specific observations based on cosmic timing, " +
			"one actionable step for the next 7 days and one thing to avoid. Keep it under 150 words.",
		maxTokens:   200,
		temperature: 0.6,
		fallback:    "Based on current planetary positions, focusing on systematic progress will yield results.",
	},
}

// DecideLayer picks the layer from the conversation depth (counting this
// turn) and the urgency of the message.
func DecideLayer(depth, urgency int) Layer {
	switch {
	case depth <= 1 || urgency > hookUrgency:
		return LayerHook
	case depth < premiumGateDepth:
		return LayerExploration
	default:
		return LayerPremiumGate
	}
}

// previousContext renders the last few messages before the current turn.
func previousContext(msgs []domain.Message) string {
	start := max(len(msgs)-contextMessages, 0)
	var b strings.Builder
	for _, m := range msgs[start:] {
		b.WriteString("- ")
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
