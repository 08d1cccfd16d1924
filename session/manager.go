// Package session tracks the connections accepted by the registration and discovery listeners.
//
// Closing a session never touches the registry: an entry outlives the connection that registered it and leaves
// only through UNREGISTER or TTL expiry.
package session

import (
	"net"
	"sync"

	"masterserver/domain"
	"masterserver/helpers"
	"masterserver/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Options bound the behaviour of persistent sessions.
type Options struct {
	// RateLimit is the sustained frame rate of one persistent session. Zero disables limiting.
	RateLimit rate.Limit
	// Burst is the frame burst of one persistent session.
	Burst int
	// MaxViolations is the number of consecutive malformed frames after which the session is closed.
	MaxViolations int
}

// Manager creates sessions and keeps the persistent ones addressable by id.
type Manager struct {
	opts   Options
	clock  interfaces.TimeProvider
	logger log.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. Panics on nil clock or logger.
func NewManager(opts Options, clock interfaces.TimeProvider, logger log.Logger) *Manager {
	return &Manager{
		opts:     opts,
		clock:    helpers.NilPanic(clock, "session.manager.go: clock is required"),
		logger:   log.With(helpers.NilPanic(logger, "session.manager.go: logger is required"), "component", "sessions"),
		sessions: make(map[string]*Session),
	}
}

// Open starts a session for a client at remoteAddr (host or host:port). Persistent sessions are tracked until
// Close and get their own frame limiter; stateless ones live only for their request.
func (m *Manager) Open(role domain.Role, transport domain.Transport, remoteAddr string) *Session {
	s := &Session{
		id:            uuid.NewString(),
		role:          role,
		transport:     transport,
		remoteHost:    hostOf(remoteAddr),
		openedAt:      m.clock.Now(),
		maxViolations: m.opts.MaxViolations,
	}
	if transport != domain.TransportPersistent {
		return s
	}
	if m.opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(m.opts.RateLimit, m.opts.Burst)
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	level.Debug(m.logger).Log("msg", "session opened", "session", s.id, "role", role, "remote", s.remoteHost)
	return s
}

// Close forgets the session. The identity it was bound to stays registered.
func (m *Manager) Close(s *Session) {
	if s == nil || s.transport != domain.TransportPersistent {
		return
	}
	m.mu.Lock()
	_, ok := m.sessions[s.id]
	delete(m.sessions, s.id)
	m.mu.Unlock()
	if !ok {
		return
	}
	bound, _, _ := s.Binding()
	level.Debug(m.logger).Log("msg", "session closed", "session", s.id, "role", s.role, "bound", bound,
		"lifetime", m.clock.Now().Sub(s.openedAt))
}

// Get returns the open persistent session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count returns the number of open persistent sessions with the given role.
func (m *Manager) Count(role domain.Role) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if s.role == role {
			n++
		}
	}
	return n
}

func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
