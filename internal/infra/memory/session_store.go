package memory

import (
	"sync"

	"knowledge-test-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository,
// keyed by client.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.TestSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.TestSession),
	}
}

func (s *SessionStore) GetOrCreate(userID string) *app.TestSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[userID]; ok {
		return session
	}
	session := app.NewSession(userID)
	s.sessions[userID] = session
	return session
}

func (s *SessionStore) Get(userID string) (*app.TestSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

func (s *SessionStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}
