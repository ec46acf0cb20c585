// manager.go — Registry of live sessions with idle expiry.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/source"
)

// DefaultTTL is how long an untouched session lives.
const DefaultTTL = 2 * time.Hour

// Manager owns sessions and the asset store they upload into.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	store    *source.Store
	ttl      time.Duration
	logger   *log.Logger
	onClose  func(*Session)
	now      func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTTL sets the idle lifetime. Zero or negative disables expiry.
func WithTTL(d time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = d }
}

// WithLogger sets the logger.
func WithLogger(lg *log.Logger) ManagerOption {
	return func(m *Manager) { m.logger = lg }
}

// WithCloseHook registers fn to run after a session is deleted or expires.
func WithCloseHook(fn func(*Session)) ManagerOption {
	return func(m *Manager) { m.onClose = fn }
}

// NewManager creates a manager over store.
func NewManager(store *source.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		ttl:      DefaultTTL,
		logger:   log.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Store returns the shared asset store.
func (m *Manager) Store() *source.Store { return m.store }

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := New(uuid.NewString(), m.store)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.logger.Debug("session created", "id", s.id)
	return s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "session %s not found", id)
	}
	return s, nil
}

// Delete closes and forgets a session.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.close(s)
	}
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle longer than the TTL and returns how many.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.close(s)
		m.logger.Debug("session expired", "id", s.id)
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("expired sessions", "count", n)
			}
		}
	}
}

// Close ends every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		m.close(s)
	}
}

func (m *Manager) close(s *Session) {
	s.Close()
	if m.onClose != nil {
		m.onClose(s)
	}
}
