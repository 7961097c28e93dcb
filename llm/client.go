// ABOUTME: Text-generation client interface and message types for the pipeline's generation nodes.
// ABOUTME: Defines Client with plain and structured (schema-constrained) generation.
package llm

import (
	"context"
)

// Role tags a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged conversation turn. Name optionally identifies a
// speaking persona within a role (e.g. the interviewed expert).
type Message struct {
	Role    Role   `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message with an optional speaker name.
func AssistantMessage(name, content string) Message {
	return Message{Role: RoleAssistant, Name: name, Content: content}
}

// ResponseSchema describes the record shape a structured generation must
// produce. Schema is a JSON Schema object passed through to the provider.
type ResponseSchema struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Client is the text-generation capability used by pipeline nodes.
type Client interface {
	// Generate produces a free-text completion for the conversation.
	Generate(ctx context.Context, messages []Message) (string, error)

	// GenerateStructured produces a completion constrained to the given
	// schema and unmarshals it into out. A completion that cannot be parsed
	// into the requested shape fails with *SchemaMismatchError.
	GenerateStructured(ctx context.Context, messages []Message, schema ResponseSchema, out any) error
}
