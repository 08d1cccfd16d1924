package interfaces

import "time"

// TimeProvider supplies the current time for heartbeat stamping and TTL checks.
// Injected so tests can move a manual clock past the TTL instead of sleeping.
//
//go:generate moq -stub -out mock/time_provider.go -pkg mock . TimeProvider
type TimeProvider interface {
	// Now returns the current time. Readings must not go backwards.
	Now() time.Time
}
