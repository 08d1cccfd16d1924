package service

import (
	"time"

	"masterserver/helpers"
	"masterserver/interfaces"
)

// timeProvider implements interfaces.TimeProvider. It returns the current time via the injected now func.
// Used by the registry for heartbeat stamps and TTL checks. Built in cmd/main with time.Now.
type timeProvider struct {
	now func() time.Time
}

// NewTimeProvider creates a TimeProvider that returns time via the given now func. Panics on nil now.
//
// Parameter now: no-arg function returning current time. In prod it is time.Now, whose readings carry the
// monotonic clock so heartbeat ages are immune to wall-clock steps.
//
// Called from cmd/main when building the registry.
func NewTimeProvider(now func() time.Time) interfaces.TimeProvider {
	return &timeProvider{now: helpers.NilPanic(now, "service.time_provider.go: now is required")}
}

// Now returns current time from the injected function.
func (t *timeProvider) Now() time.Time {
	return t.now()
}
