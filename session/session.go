package session

import (
	"sync"
	"time"

	"masterserver/domain"
	"masterserver/service"

	"golang.org/x/time/rate"
)

// Session is the server side of one client exchange: a single HTTP request (stateless) or a WebSocket connection
// (persistent). A persistent registration session speaks only for the identity it registered last.
type Session struct {
	id         string
	role       domain.Role
	transport  domain.Transport
	remoteHost string
	openedAt   time.Time

	limiter       *rate.Limiter
	maxViolations int

	mu         sync.Mutex
	bound      domain.Identity
	generation domain.Generation
	violations int
}

func (s *Session) ID() string                  { return s.id }
func (s *Session) Role() domain.Role           { return s.role }
func (s *Session) Transport() domain.Transport { return s.transport }
func (s *Session) RemoteHost() string          { return s.remoteHost }
func (s *Session) OpenedAt() time.Time         { return s.openedAt }

// Bind makes the session speak for id at generation gen, replacing any earlier binding.
func (s *Session) Bind(id domain.Identity, gen domain.Generation) {
	s.mu.Lock()
	s.bound, s.generation = id, gen
	s.mu.Unlock()
}

// Unbind clears the binding if it is still id.
func (s *Session) Unbind(id domain.Identity) {
	s.mu.Lock()
	if s.bound == id {
		s.bound, s.generation = "", 0
	}
	s.mu.Unlock()
}

// Binding returns the bound identity and generation.
func (s *Session) Binding() (domain.Identity, domain.Generation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound, s.generation, s.bound != ""
}

// Resolve returns the identity and generation a HEARTBEAT or UNREGISTER acts on.
//
// A stateless session carries no binding, so both values must be supplied and the identity must belong to the
// caller's host. A persistent session fills missing values from its binding and refuses any other identity.
func (s *Session) Resolve(id domain.Identity, gen domain.Generation) (domain.Identity, domain.Generation, error) {
	if s.transport == domain.TransportStateless {
		if id == "" {
			return "", 0, service.NewMalformedError("identity is required", nil)
		}
		if gen == 0 {
			return "", 0, service.NewMalformedError("generation is required", nil)
		}
		if id.Host() != s.remoteHost {
			return "", 0, service.NewForbiddenError("identity " + string(id) + " does not belong to " + s.remoteHost)
		}
		return id, gen, nil
	}

	bound, boundGen, ok := s.Binding()
	if !ok {
		return "", 0, service.NewForbiddenError("session has not registered")
	}
	if id != "" && id != bound {
		return "", 0, service.NewForbiddenError("session may only act for " + string(bound))
	}
	if gen == 0 {
		gen = boundGen
	}
	return bound, gen, nil
}

// Allow reports whether one more frame fits in the session's rate.
func (s *Session) Allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// Violation records a malformed frame and reports whether the session has now exceeded its allowance of
// consecutive violations.
func (s *Session) Violation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations++
	return s.maxViolations > 0 && s.violations >= s.maxViolations
}

// Accepted resets the consecutive violation count after a well-formed frame.
func (s *Session) Accepted() {
	s.mu.Lock()
	s.violations = 0
	s.mu.Unlock()
}
