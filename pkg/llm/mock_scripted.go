package llm

import (
	"context"
	"errors"
	"sync"
)

// ScriptedMockProvider returns a pre-defined sequence of turns. Useful
// for testing multi-step tool-use interactions where the model first
// requests tool calls and later produces a final answer.
type ScriptedMockProvider struct {
	mu    sync.Mutex
	Turns []*ChatResponse
	Err   error
	// CallCount tracks how many times Chat has been called.
	CallCount int
	// LastRequest records the most recent request for assertions.
	LastRequest ChatRequest
}

// NewScriptedMockProvider creates a provider that replays turns in order.
func NewScriptedMockProvider(turns ...*ChatResponse) *ScriptedMockProvider {
	return &ScriptedMockProvider{Turns: turns}
}

// TextTurn builds a plain-content turn.
func TextTurn(content string) *ChatResponse {
	return &ChatResponse{
		Content: content,
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}
}

// ToolCallTurn builds a turn requesting one tool call with raw JSON arguments.
func ToolCallTurn(name, arguments string) *ChatResponse {
	return &ChatResponse{
		ToolCalls: []ToolCall{{
			Type:     ToolTypeFunction,
			Function: FunctionCall{Name: name, Arguments: arguments},
		}},
		Usage: Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}
}

// Chat pops the next scripted turn or returns the configured error.
func (s *ScriptedMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount++
	s.LastRequest = req

	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Turns) == 0 {
		return nil, errors.New("scripted mock: no more turns available")
	}

	turn := s.Turns[0]
	s.Turns = s.Turns[1:]
	return turn, nil
}

// AddTurn appends a turn to the queue.
func (s *ScriptedMockProvider) AddTurn(turn *ChatResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Turns = append(s.Turns, turn)
}
