// Package chat runs the conversation message pipeline: moderation of every message, append-only conversation logs, and assistant replies.
package chat

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
	OriginSystem    Origin = "system"
)

type ConversationType string

const (
	TypeDirect  ConversationType = "direct"
	TypeGroup   ConversationType = "group"
	TypeChannel ConversationType = "channel"
)

func (t ConversationType) Valid() bool {
	switch t {
	case TypeDirect, TypeGroup, TypeChannel:
		return true
	}
	return false
}

// sender id used for moderation notices
const SystemSenderID = "system"

var (
	ErrEmptyMessage         = errors.New("empty message")
	ErrMessageTooLong       = errors.New("message too long")
	ErrRateLimited          = errors.New("sending too fast, try again shortly")
	ErrMissingSender        = errors.New("message sender required")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidConversation  = errors.New("invalid conversation")
)

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Origin         Origin    `json:"origin"`
}

type Conversation struct {
	ID               string           `json:"id"`
	Type             ConversationType `json:"type"`
	Name             string           `json:"name,omitempty"`
	ParticipantIDs   []string         `json:"participant_ids"`
	AssistantEnabled bool             `json:"assistant_enabled"`
}

func (c *Conversation) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidConversation)
	}
	if !c.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidConversation, c.Type)
	}
	return nil
}

// Whether the assistant replies to approved messages in this conversation. Channels are broadcast-only and never get replies.
func (c *Conversation) AssistantReplies(assistantID string) bool {
	if c.Type == TypeChannel {
		return false
	}
	return c.AssistantEnabled || slices.Contains(c.ParticipantIDs, assistantID)
}
