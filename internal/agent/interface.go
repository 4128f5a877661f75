package agent

import "context"

// Message is one transcript entry; Role is "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatAgent answers one user message given the prior transcript and
// returns the transcript extended with this exchange. The API server
// depends on this rather than the concrete Agent.
type ChatAgent interface {
	Chat(ctx context.Context, userMessage string, history []Message) (string, []Message, error)
}
