package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageKind separates regular chat turns from generated side content.
type MessageKind string

const (
	KindChat     MessageKind = "chat"
	KindWelcome  MessageKind = "welcome"
	KindCommand  MessageKind = "command"
	KindFallback MessageKind = "fallback"
)

// Message is one turn in a session.
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Guide     Persona     `json:"guide"`
	Upsell    bool        `json:"upsell"`
	Topic     Topic       `json:"topic,omitempty"`
	Phase     Phase       `json:"phase,omitempty"`
	Kind      MessageKind `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewMessage builds a message with a fresh ID.
func NewMessage(role Role, kind MessageKind, content string, guide Persona, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Guide:     guide,
		Kind:      kind,
		CreatedAt: now,
	}
}
