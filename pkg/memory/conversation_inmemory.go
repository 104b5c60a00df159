// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryConversation implements ConversationMemory with in-memory
// storage. Suitable for single-instance deployments; data is lost on
// restart.
type InMemoryConversation struct {
	mu       sync.RWMutex
	sessions map[string][]ConversationMessage
	config   ConversationConfig
}

// NewInMemoryConversation creates a new in-memory conversation store.
func NewInMemoryConversation(config ConversationConfig) *InMemoryConversation {
	return &InMemoryConversation{
		sessions: make(map[string][]ConversationMessage),
		config:   config,
	}
}

// AppendMessage adds a message to the conversation.
func (m *InMemoryConversation) AppendMessage(_ context.Context, sessionID string, msg ConversationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.SessionID == "" {
		msg.SessionID = sessionID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	m.sessions[sessionID] = append(m.sessions[sessionID], msg)
	return nil
}

// GetMessages retrieves all messages for a session.
func (m *InMemoryConversation) GetMessages(ctx context.Context, sessionID string) ([]ConversationMessage, error) {
	m.mu.RLock()
	messages := make([]ConversationMessage, len(m.sessions[sessionID]))
	copy(messages, m.sessions[sessionID])
	m.mu.RUnlock()

	if m.config.TruncationStrategy != nil && len(messages) > 0 {
		return m.config.TruncationStrategy.Truncate(ctx, messages)
	}
	return messages, nil
}

// GetRecentMessages retrieves the last N messages for a session.
func (m *InMemoryConversation) GetRecentMessages(_ context.Context, sessionID string, limit int) ([]ConversationMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.sessions[sessionID]
	if len(all) <= limit {
		result := make([]ConversationMessage, len(all))
		copy(result, all)
		return result, nil
	}

	result := make([]ConversationMessage, limit)
	copy(result, all[len(all)-limit:])
	return result, nil
}

// Clear removes all messages for a session.
func (m *InMemoryConversation) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

// MessageCount returns the number of messages in a session.
func (m *InMemoryConversation) MessageCount(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions[sessionID])
}
