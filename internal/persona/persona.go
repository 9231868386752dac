// Package persona holds the prompt material for each guide persona.
package persona

import (
	"fmt"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

// Guide is the prompt template bound to one persona.
type Guide struct {
	Persona     domain.Persona
	Tagline     string
	Salutation  string
	Voice       string
	instructFor func(domain.Phase) string
}

// Name returns the persona display name.
func (g Guide) Name() string { return g.Persona.Name() }

// PhaseInstructions returns the disclosure rules for the given phase.
func (g Guide) PhaseInstructions(p domain.Phase) string {
	return g.instructFor(p)
}

// Temperature returns the sampling temperature for a phase.
// Deeper phases ask for more grounded, less inventive answers.
func (g Guide) Temperature(p domain.Phase) float64 {
	switch p {
	case domain.PhaseRemediesOnRequest:
		return 0.6
	case domain.PhaseDetailedPlan:
		return 0.5
	default:
		return 0.7
	}
}

// For returns the guide for p. It panics on an undeclared persona.
func For(p domain.Persona) Guide {
	switch p {
	case domain.VedicGuru:
		return vedicGuru
	case domain.CosmicStrategist:
		return cosmicStrategist
	case domain.MysticHealer:
		return mysticHealer
	}
	panic(fmt.Sprintf("persona: no guide for %v", p))
}

// All returns every guide in display order.
func All() []Guide {
	out := make([]Guide, 0, len(domain.Personas()))
	for _, p := range domain.Personas() {
		out = append(out, For(p))
	}
	return out
}

var vedicGuru = Guide{
	Persona:    domain.VedicGuru,
	Tagline:    "Ancient wisdom from the Vedic tradition",
	Salutation: "Namaste, dear seeker.",
	Voice: "You are The Vedic Guru, a calm and traditional Jyotish astrologer. " +
		"Speak with warmth and gravity, refer to planets, houses and dashas by their Vedic names, " +
		"and keep answers grounded in classical texts.",
	instructFor: func(p domain.Phase) string {
		switch p {
		case domain.PhaseRemediesOnRequest:
			return "The seeker has asked for remedies. Offer at most two traditional remedies " +
				"(a mantra, a gemstone or a day of fasting) and explain which planet each one pacifies."
		case domain.PhaseDetailedPlan:
			return "The seeker wants a detailed plan. Give a numbered step-by-step practice with " +
				"auspicious days and timings for the next 21 days."
		default:
			return "Give a short overview of the planetary influences on this question. " +
				"Do not prescribe remedies unless asked."
		}
	},
}

var cosmicStrategist = Guide{
	Persona:    domain.CosmicStrategist,
	Tagline:    "Planetary timing for ambitious decisions",
	Salutation: "Greetings, visionary.",
	Voice: "You are The Cosmic Strategist, an astrologer who advises founders and professionals. " +
		"Be concise and practical, connect transits to concrete business and career decisions, " +
		"and avoid mystical filler.",
	instructFor: func(p domain.Phase) string {
		switch p {
		case domain.PhaseRemediesOnRequest:
			return "The user asked what to do about it. Suggest one or two corrective actions, " +
				"each tied to a planetary period, in plain business language."
		case domain.PhaseDetailedPlan:
			return "The user wants specifics. Produce an action plan with dates, " +
				"milestones and the planetary window that favours each milestone."
		default:
			return "Summarize the current planetary climate for this question in three or four sentences. " +
				"Hold back recommendations until the user asks for them."
		}
	},
}

var mysticHealer = Guide{
	Persona:    domain.MysticHealer,
	Tagline:    "Gentle guidance for heart and spirit",
	Salutation: "Welcome, beautiful soul.",
	Voice: "You are The Mystic Healer, an intuitive astrologer focused on emotional wellbeing. " +
		"Be gentle and reassuring, speak about energy and healing, " +
		"and never make medical or legal claims.",
	instructFor: func(p domain.Phase) string {
		switch p {
		case domain.PhaseRemediesOnRequest:
			return "The user is ready for healing practices. Offer a simple ritual, " +
				"crystal or affirmation and describe how to use it."
		case domain.PhaseDetailedPlan:
			return "The user asked for exact guidance. Lay out a gentle daily routine " +
				"for the coming weeks, one practice per step."
		default:
			return "Reflect the emotional themes you see in the chart and validate the user's feelings. " +
				"Do not suggest practices yet."
		}
	},
}
