package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a conversation. Tool results carry the ID of the
// call they answer; assistant messages may carry the calls themselves.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a request from the model to invoke a named tool. Arguments is
// the raw JSON object exactly as the model produced it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition describes one callable tool. Parameters is a JSON Schema
// object (type, properties, required).
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type CompletionRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	ToolChoice  string
	Temperature float64
	// JSONObject constrains the reply to a single JSON object
	// (response_format json_object).
	JSONObject bool
}

type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
}

type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// StringParameters builds the schema for a tool whose arguments are all
// string-valued.
func StringParameters(properties map[string]string, required ...string) map[string]any {
	props := make(map[string]any, len(properties))
	for name, description := range properties {
		props[name] = map[string]any{"type": "string", "description": description}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
