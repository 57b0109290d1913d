package session

import (
	"sync"
	"time"
)

// Manager owns every live session of the server.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager creates a new session manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session for the given transport.
func (m *Manager) Create(transport Transport) (*Session, error) {
	id, err := generateID()
	if err != nil {
		return nil, err
	}
	sess := newSession(id, transport, false)

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()
	return sess, nil
}

// Ephemeral returns an unregistered session that lives for one request.
// The caller must Close it.
func (m *Manager) Ephemeral(transport Transport) *Session {
	return newSession("", transport, true)
}

// Get retrieves a session by ID and records activity on it.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		sess.Touch()
	}
	return sess, ok
}

// Has reports whether the session exists without touching it.
func (m *Manager) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}

// Remove closes and forgets a session. It reports whether it existed.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		sess.Close()
	}
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes sessions idle for longer than timeout and returns how
// many were removed.
func (m *Manager) Cleanup(timeout time.Duration) int {
	now := time.Now()
	var expired []*Session

	m.mu.Lock()
	for id, sess := range m.sessions {
		if now.Sub(sess.LastSeen()) > timeout {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
	}
	return len(expired)
}

// CloseAll closes every session; used on shutdown so open streams end.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, sess := range m.sessions {
		all = append(all, sess)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, sess := range all {
		sess.Close()
	}
}
