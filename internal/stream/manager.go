package stream

import (
	"sort"
	"sync"
)

// Manager tracks at most one session per connection id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Register stores s under its id and returns the session it replaced, if any.
// The caller owns closing the previous session.
func (m *Manager) Register(s *Session) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.sessions[s.ID()]
	m.sessions[s.ID()] = s
	return prev
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove drops id only while it still maps to s, so a late cleanup from a
// replaced session cannot evict its successor.
func (m *Manager) Remove(id string, s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[id]; ok && cur == s {
		delete(m.sessions, id)
		return true
	}
	return false
}

func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
