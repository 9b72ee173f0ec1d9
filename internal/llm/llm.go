// Package llm is the client for the external text-generation endpoint.
package llm

import "context"

// Role is a message sender role in the conversation history.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one history entry sent alongside a request.
type Message struct {
	Role    Role
	Content string
}

// Client sends one synchronous generation request. The message list is
// system instruction, then history (capped by the caller), then the
// user message.
type Client interface {
	Send(ctx context.Context, system, user string, history []Message) (string, error)
}
