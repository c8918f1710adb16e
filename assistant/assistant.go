// Package assistant is the boundary to the external conversational assistant which replies in chat conversations.
package assistant

import (
	"context"
	"errors"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Replies posted in place of an assistant response.
const (
	FallbackError = "Sorry, I'm having trouble connecting to my brain right now."
	FallbackEmpty = "I couldn't generate a response."
)

var ErrNotConfigured = errors.New("assistant not configured")

// One prior message in a conversation, as seen by the assistant.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Produces a reply to a prompt, given earlier conversation turns (oldest first).
//
// Implementations must honor context cancellation. An empty reply with nil error is allowed; callers decide what to post.
type Bridge interface {
	Respond(ctx context.Context, prompt string, history []Turn) (string, error)
}

// Adapter so an ordinary function can be used as a Bridge.
type Func func(ctx context.Context, prompt string, history []Turn) (string, error)

func (f Func) Respond(ctx context.Context, prompt string, history []Turn) (string, error) {
	return f(ctx, prompt, history)
}
