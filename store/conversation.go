package store

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// DefaultTitle is the title given to a freshly created conversation. It is
// rewritten once, from the first user message, as long as it is still the
// default and the conversation has no messages yet.
const DefaultTitle = "New Chat"

// Message is a single chat message. Messages are immutable once created and
// the sequence within a conversation is append-only.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// HasMissingInputs marks the synthetic assistant message produced when
	// the verification backend asked for more information.
	HasMissingInputs bool `json:"hasMissingInputs,omitempty"`
}

// Conversation is one ordered thread of messages with its own identity,
// title, and timestamps.
type Conversation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
	Messages    []Message `json:"messages"`
}

// NewConversation builds an empty conversation with a fresh identity and the
// default title.
func NewConversation() *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:          uuid.NewString(),
		Title:       DefaultTitle,
		CreatedAt:   now,
		LastUpdated: now,
		Messages:    []Message{},
	}
}

// NewMessage builds a message with a fresh identity and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the conversation. The session layer hands out
// copies so callers can never mutate stored state behind its back.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = make([]Message, len(c.Messages))
	copy(clone.Messages, c.Messages)
	return &clone
}
