package session

import (
	"testing"
	"time"

	"masterserver/domain"
	"masterserver/helpers"
	"masterserver/interfaces/mock"
	"masterserver/service"

	"github.com/go-kit/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestManager(opts Options) (*Manager, *helpers.ManualClock) {
	clock := helpers.NewManualClock(helpers.TestNow())
	return NewManager(opts, clock, log.NewNopLogger()), clock
}

func TestNewManager_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "session.manager.go: clock is required", func() {
		NewManager(Options{}, nil, log.NewNopLogger())
	})
	assert.PanicsWithValue(t, "session.manager.go: logger is required", func() {
		NewManager(Options{}, helpers.NewManualClock(helpers.TestNow()), nil)
	})
}

func TestManager_OpenClose(t *testing.T) {
	m, _ := newTestManager(Options{})

	ws := m.Open(domain.RoleRegistration, domain.TransportPersistent, "10.0.0.1:5555")
	_, err := uuid.Parse(ws.ID())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", ws.RemoteHost())
	assert.Equal(t, helpers.TestNow(), ws.OpenedAt())
	assert.Equal(t, 1, m.Count(domain.RoleRegistration))
	assert.Equal(t, 0, m.Count(domain.RoleDiscovery))

	got, ok := m.Get(ws.ID())
	require.True(t, ok)
	assert.Same(t, ws, got)

	req := m.Open(domain.RoleRegistration, domain.TransportStateless, "10.0.0.2")
	assert.Equal(t, "10.0.0.2", req.RemoteHost())
	assert.NotEqual(t, ws.ID(), req.ID())
	_, ok = m.Get(req.ID())
	assert.False(t, ok, "stateless sessions are not tracked")

	m.Close(ws)
	m.Close(ws)
	m.Close(req)
	m.Close(nil)
	assert.Equal(t, 0, m.Count(domain.RoleRegistration))
	_, ok = m.Get(ws.ID())
	assert.False(t, ok)
}

func TestManager_StatelessOpenReadsClockOnce(t *testing.T) {
	opened := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &mock.TimeProviderMock{NowFunc: func() time.Time { return opened }}
	m := NewManager(Options{RateLimit: rate.Limit(1), Burst: 1}, clock, log.NewNopLogger())

	s := m.Open(domain.RoleDiscovery, domain.TransportStateless, "[2001:db8::1]:443")
	assert.Equal(t, "2001:db8::1", s.RemoteHost())
	assert.Equal(t, opened, s.OpenedAt())
	assert.Len(t, clock.NowCalls(), 1)
	// Stateless sessions carry no limiter.
	assert.True(t, s.Allow())
	assert.True(t, s.Allow())
}

func TestSession_ResolvePersistent(t *testing.T) {
	m, _ := newTestManager(Options{})
	s := m.Open(domain.RoleRegistration, domain.TransportPersistent, "10.0.0.1:1")

	_, _, err := s.Resolve("", 0)
	require.Error(t, err)
	assert.True(t, service.IsForbiddenError(err))

	s.Bind("10.0.0.1/a", 3)

	tests := []struct {
		name        string
		id          domain.Identity
		gen         domain.Generation
		expectedID  domain.Identity
		expectedGen domain.Generation
		forbidden   bool
	}{
		{name: "defaults to binding", expectedID: "10.0.0.1/a", expectedGen: 3},
		{name: "explicit own identity", id: "10.0.0.1/a", gen: 2, expectedID: "10.0.0.1/a", expectedGen: 2},
		{name: "generation only", gen: 1, expectedID: "10.0.0.1/a", expectedGen: 1},
		{name: "other identity", id: "10.0.0.1/b", gen: 1, forbidden: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, gen, err := s.Resolve(tt.id, tt.gen)
			if tt.forbidden {
				require.Error(t, err)
				assert.True(t, service.IsForbiddenError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedID, id)
			assert.Equal(t, tt.expectedGen, gen)
		})
	}

	s.Unbind("10.0.0.1/other")
	_, _, bound := s.Binding()
	assert.True(t, bound)
	s.Unbind("10.0.0.1/a")
	_, _, bound = s.Binding()
	assert.False(t, bound)
}

func TestSession_ResolveStateless(t *testing.T) {
	m, _ := newTestManager(Options{})
	s := m.Open(domain.RoleRegistration, domain.TransportStateless, "10.0.0.1")

	id, gen, err := s.Resolve("10.0.0.1/x", 4)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("10.0.0.1/x"), id)
	assert.Equal(t, domain.Generation(4), gen)

	tests := []struct {
		name string
		id   domain.Identity
		gen  domain.Generation
		code string
	}{
		{"missing identity", "", 4, service.ErrMalformed},
		{"missing generation", "10.0.0.1/x", 0, service.ErrMalformed},
		{"identity of another host", "9.9.9.9/x", 4, service.ErrForbidden},
		{"host prefix only", "10.0.0.10/x", 4, service.ErrForbidden},
		{"identity without host", "x", 4, service.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Resolve(tt.id, tt.gen)
			assert.Equal(t, tt.code, service.ToMyErrorCode(err))
		})
	}
}

func TestSession_Violations(t *testing.T) {
	m, _ := newTestManager(Options{MaxViolations: 3})
	s := m.Open(domain.RoleDiscovery, domain.TransportPersistent, "10.0.0.1:1")

	assert.False(t, s.Violation())
	assert.False(t, s.Violation())
	s.Accepted()
	assert.False(t, s.Violation())
	assert.False(t, s.Violation())
	assert.True(t, s.Violation())
}

func TestSession_Allow(t *testing.T) {
	m, _ := newTestManager(Options{RateLimit: rate.Every(time.Hour), Burst: 2})
	s := m.Open(domain.RoleRegistration, domain.TransportPersistent, "10.0.0.1:1")
	assert.True(t, s.Allow())
	assert.True(t, s.Allow())
	assert.False(t, s.Allow())

	unlimited, _ := newTestManager(Options{})
	u := unlimited.Open(domain.RoleRegistration, domain.TransportPersistent, "10.0.0.1:1")
	for i := 0; i < 100; i++ {
		require.True(t, u.Allow())
	}
}
