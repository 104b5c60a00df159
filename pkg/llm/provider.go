// SPDX-License-Identifier: Apache-2.0

// Package llm abstracts the text-generation backend behind a Provider
// interface so the answer loop can run against a local Ollama daemon
// in production and scripted stand-ins in tests.
package llm

import "context"

// Role tags who authored a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool carries a tool result back to the model.
	RoleTool Role = "tool"
)

// ToolType classifies a tool declaration. Only function tools exist.
type ToolType string

const (
	ToolTypeFunction ToolType = "function"
)

// FunctionDef declares one callable tool to the model. Parameters is
// the JSON Schema published by the tool registry.
type FunctionDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters"`
}

// Tool is one entry of the catalog handed to the model per request.
type Tool struct {
	Type     ToolType    `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionCall names the tool the model wants and its raw JSON
// arguments (for example `{"barcode":"3017620422003"}`).
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is one invocation requested by the model within a turn.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     ToolType     `json:"type"`
	Function FunctionCall `json:"function"`
}

// Message is one turn of the conversation sent to or received from the
// backend. ToolCallID links a tool-role turn to the call it answers.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ChatRequest is one round trip to the backend: the system prompt and
// history plus the live tool catalog.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// ChatResponse is the model's turn: either final content or a set of
// requested tool calls for the loop to execute.
type ChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// Usage reports token consumption for logging and cost tracking.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider is the text-generation backend contract.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
