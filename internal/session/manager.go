// Package session keeps per-client vector stores with an explicit lifecycle: a
// session is created on demand, found by ID, and discarded on request or after
// staying idle past its TTL.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Manager is the registry of live sessions.
type Manager struct {
	engine        *search.Engine
	idleTTL       time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithIdleTTL sets how long a session may stay unused before Sweep removes it.
// Zero disables expiry.
func WithIdleTTL(d time.Duration) Option {
	return func(m *Manager) { m.idleTTL = d }
}

// WithSweepInterval sets how often Run sweeps.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// WithLogger sets the logger for session lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = utils.OrNop(l) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates an empty registry whose sessions search with engine.
func NewManager(engine *search.Engine, opts ...Option) *Manager {
	m := &Manager{
		engine:        engine,
		idleTTL:       time.Hour,
		sweepInterval: 5 * time.Minute,
		now:           time.Now,
		logger:        zap.NewNop(),
		sessions:      make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session with a random ID and an empty store.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.engine, m.now, false)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.logger.Debug("session created", zap.String("session_id", s.id))
	return s
}

// Pin returns the session with the given ID, creating it if needed. Pinned sessions
// are never swept.
func (m *Manager) Pin(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := newSession(id, m.engine, m.now, true)
	m.sessions[id] = s
	m.logger.Debug("session pinned", zap.String("session_id", id))
	return s
}

// Get returns the session with the given ID and marks it used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.touch()
	return s, true
}

// Delete discards a session and its store. It reports whether the session existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.logger.Debug("session deleted", zap.String("session_id", id))
	}
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes unpinned sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep(now time.Time) int {
	if m.idleTTL <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.pinned || s.idle(now) <= m.idleTTL {
			continue
		}
		delete(m.sessions, id)
		removed++
		m.logger.Debug("session expired", zap.String("session_id", id))
	}
	if removed > 0 {
		m.logger.Info("Expired idle sessions", zap.Int("removed", removed), zap.Int("remaining", len(m.sessions)))
	}
	return removed
}

// Run sweeps on a ticker until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}
