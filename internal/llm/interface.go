package llm

import (
	"context"
)

// Message is a provider-neutral transcript entry; each client maps it
// onto its own wire format.
type Message struct {
	Role    string
	Content string
}

// ToolCall is a model's request to invoke a named tool. Input is the
// raw JSON argument object, left unparsed for the tool handler.
type ToolCall struct {
	ID    string
	Name  string
	Input []byte
}

type Response struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
}

// ToolDefinition declares a tool in JSON-schema terms: Parameters maps
// property names to their schemas, Required lists mandatory ones.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Required    []string
}

type Client interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition, systemPrompt string) (*Response, error)
	Name() string
}

// Router selects which client handles a given query.
type Router interface {
	Route(query string) Client
}
