package gateway

import "sync"

// AdminSessions tracks which live connections currently hold the admin
// capability, keyed by connection ID. Capabilities are never persisted;
// a grant lasts until the connection is revoked on disconnect.
type AdminSessions struct {
	mu       sync.RWMutex
	sessions map[string]bool
}

// NewAdminSessions creates an empty session registry.
func NewAdminSessions() *AdminSessions {
	return &AdminSessions{sessions: make(map[string]bool)}
}

// Grant marks the connection as holding the admin capability.
func (s *AdminSessions) Grant(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[connID] = true
}

// Revoke removes the connection's capability, if any.
func (s *AdminSessions) Revoke(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, connID)
}

// IsAdmin reports whether the connection holds the admin capability.
func (s *AdminSessions) IsAdmin(connID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[connID]
}

// Count returns the number of connections holding the capability.
func (s *AdminSessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
