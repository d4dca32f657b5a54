package domain

import (
	"encoding/json"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Role identifies the author of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a session's conversation history
type Message struct {
	Role    Role
	Content string
}

// StopReason explains why the model stopped producing output
type StopReason string

const (
	StopReasonToolUse   StopReason = "tool_use"
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonMaxTokens StopReason = "max_tokens"
)

// ToolCall is a request from the model to run a backend tool
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ChatMessage is a message exchanged with the chat model
type ChatMessage struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolDefinition describes a tool the model may call
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// ChatRequest is a single chat model invocation
type ChatRequest struct {
	System   string
	Messages []ChatMessage
	Tools    []ToolDefinition
}

// ChatResponse is the model's reply to a ChatRequest
type ChatResponse struct {
	Message    ChatMessage
	StopReason StopReason
}
