package conversation

import (
	"fmt"
	"strings"

	"github.com/ashureev/cosmic-guide/internal/domain"
	"github.com/ashureev/cosmic-guide/internal/persona"
)

// FallbackMessage replaces the reply when the completion call fails.
const FallbackMessage = "The stars are clouded for a moment and I could not complete this reading. " +
	"Please ask again shortly."

// PromptInput is everything the system prompt is assembled from.
type PromptInput struct {
	Guide   persona.Guide
	Phase   domain.Phase
	Topic   domain.Topic
	Profile domain.Profile
	Greet   bool
	// Layer adds the reply-length instruction of a layered reply. Empty keeps
	// the default length rule.
	Layer Layer
}

// BuildSystemPrompt assembles the persona voice, phase instructions, profile
// and salutation rule into one system prompt.
func BuildSystemPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString(in.Guide.Voice)
	b.WriteString("\n\n")

	b.WriteString("User profile:\n")
	b.WriteString(in.Profile.Summary())
	b.WriteString("\n\n")

	topic := in.Topic
	if topic == "" {
		topic = domain.TopicGeneral
	}
	fmt.Fprintf(&b, "Conversation topic: %s\n", topic)
	fmt.Fprintf(&b, "Disclosure phase %d (%s): %s\n\n", in.Phase, in.Phase, in.Guide.PhaseInstructions(in.Phase))

	if in.Greet {
		fmt.Fprintf(&b, "This is your first reply to this user. Open with the salutation %q.\n", in.Guide.Salutation)
	} else {
		b.WriteString("You have already greeted this user. Do not repeat a salutation; answer directly.\n")
	}
	if l, ok := layers[in.Layer]; ok {
		b.WriteString(l.instruction)
		b.WriteString("\nNever claim certainty about the future.")
		return b.String()
	}
	b.WriteString("Never claim certainty about the future and keep the answer under 250 words.")
	return b.String()
}
