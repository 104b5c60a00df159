package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionHeader is the header carrying the per-client session token.
const SessionHeader = "Mcp-Session-Id"

// Session is an opaque per-client handle scoping gateway interactions.
type Session struct {
	ID        string
	CreatedAt time.Time
}

// SessionStore tracks live sessions. Implementations must be safe for
// concurrent use.
type SessionStore interface {
	// Create mints a new session and returns it.
	Create() Session

	// Get reports whether the identifier maps to a live session.
	Get(id string) (Session, bool)

	// Delete removes a session. Deleting an unknown id is a no-op.
	Delete(id string)
}

// MemorySessionStore is the process-lifetime session registry.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemorySessionStore creates an empty session registry.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

// Create implements SessionStore.
func (s *MemorySessionStore) Create() Session {
	sess := Session{ID: uuid.New().String(), CreatedAt: time.Now()}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get implements SessionStore.
func (s *MemorySessionStore) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Delete implements SessionStore.
func (s *MemorySessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
