// SPDX-License-Identifier: Apache-2.0

// Package memory stores per-conversation message history so the agent
// can answer follow-up questions with earlier turns in context.
package memory

import (
	"context"
	"time"
)

// ConversationMessage represents a single message in a conversation history.
type ConversationMessage struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Role       string    `json:"role"` // system, user, assistant, tool
	Content    string    `json:"content"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationMemory stores and retrieves ordered conversation history
// for multi-turn interactions.
type ConversationMemory interface {
	// AppendMessage adds a message to the conversation.
	AppendMessage(ctx context.Context, sessionID string, msg ConversationMessage) error

	// GetMessages retrieves all messages for a session, ordered by
	// creation time, after applying the configured truncation strategy.
	GetMessages(ctx context.Context, sessionID string) ([]ConversationMessage, error)

	// GetRecentMessages retrieves the last N messages for a session.
	GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]ConversationMessage, error)

	// Clear removes all messages for a session.
	Clear(ctx context.Context, sessionID string) error
}

// TruncationStrategy defines how to manage conversation length.
type TruncationStrategy interface {
	// Truncate reduces messages while preserving context and returns
	// the truncated list.
	Truncate(ctx context.Context, messages []ConversationMessage) ([]ConversationMessage, error)
}

// ConversationConfig configures a conversation store.
type ConversationConfig struct {
	TruncationStrategy TruncationStrategy
}

// WindowStrategy keeps only the last N messages.
type WindowStrategy struct {
	MaxMessages int
	// KeepSystemMessages preserves system messages regardless of window.
	KeepSystemMessages bool
}

// Truncate implements TruncationStrategy.
func (w *WindowStrategy) Truncate(_ context.Context, messages []ConversationMessage) ([]ConversationMessage, error) {
	if len(messages) <= w.MaxMessages {
		return messages, nil
	}

	if !w.KeepSystemMessages {
		return messages[len(messages)-w.MaxMessages:], nil
	}

	var systemMsgs []ConversationMessage
	var otherMsgs []ConversationMessage
	for _, msg := range messages {
		if msg.Role == "system" {
			systemMsgs = append(systemMsgs, msg)
		} else {
			otherMsgs = append(otherMsgs, msg)
		}
	}

	available := w.MaxMessages - len(systemMsgs)
	if available < 0 {
		available = 0
	}
	if len(otherMsgs) > available {
		otherMsgs = otherMsgs[len(otherMsgs)-available:]
	}

	result := make([]ConversationMessage, 0, len(systemMsgs)+len(otherMsgs))
	result = append(result, systemMsgs...)
	result = append(result, otherMsgs...)
	return result, nil
}
