// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"

	"github.com/foodscout/foodscout/pkg/errors"
)

// MockProvider answers every chat with a fixed canned response. Set
// ChatFunc to observe or shape individual requests, or Err to make the
// backend fail.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Chat implements Provider.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	content := m.Response
	if content == "" {
		content = "I don't have an answer for that product question."
	}
	return &ChatResponse{
		Content: content,
		Usage: Usage{
			PromptTokens:     10,
			CompletionTokens: 10,
			TotalTokens:      20,
		},
	}, nil
}

// FailingMockProvider simulates an unreachable backend.
type FailingMockProvider struct {
	Err error
}

// Chat implements Provider. A zero value fails with a generic backend
// error.
func (f *FailingMockProvider) Chat(context.Context, ChatRequest) (*ChatResponse, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return nil, errors.Newf(errors.CodeLLMError, "backend unavailable")
}
