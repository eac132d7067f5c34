package service

import (
	"errors"
	"sync"
	"time"

	"fz-pos-api/internal/logger"
	"fz-pos-api/internal/pos"
	"fz-pos-api/pkg/uid"

	"github.com/benbjohnson/clock"
)

// ErrSessionNotFound is returned for unknown or closed session IDs.
var ErrSessionNotFound = errors.New("session not found")

// SessionManager owns the mounted POS sessions.
type SessionManager struct {
	deps    pos.Deps
	idleTTL time.Duration
	clock   clock.Clock

	mu       sync.RWMutex
	sessions map[string]*pos.Session
}

// NewSessionManager creates a manager. Sessions idle longer than idleTTL are
// closed by ReapIdle.
func NewSessionManager(deps pos.Deps, idleTTL time.Duration) *SessionManager {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &SessionManager{
		deps:     deps,
		idleTTL:  idleTTL,
		clock:    deps.Clock,
		sessions: make(map[string]*pos.Session),
	}
}

// Create mounts a new session.
func (m *SessionManager) Create() *pos.Session {
	s := pos.NewSession(uid.New(), m.deps)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	logger.Log.Infof("[SessionManager] Opened session %s (%d active)", s.ID(), n)
	return s
}

// Get returns a mounted session.
func (m *SessionManager) Get(id string) (*pos.Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close tears a session down.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	logger.Log.Infof("[SessionManager] Closed session %s", id)
	return nil
}

// ReapIdle closes sessions without activity for the idle TTL. Sessions
// waiting for a payment are kept.
func (m *SessionManager) ReapIdle() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.clock.Now().Add(-m.idleTTL)

	var stale []*pos.Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if state, _ := s.PaymentState(); state == pos.PollPolling {
			continue
		}
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		logger.Log.Infof("[SessionManager] Reaped %d idle sessions", len(stale))
	}
	return len(stale)
}

// Count returns the number of mounted sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll tears every session down.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*pos.Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
