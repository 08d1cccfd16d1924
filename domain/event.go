package domain

import "time"

// EventType names a registry change broadcast to watchers.
type EventType string

const (
	EventRegistered   EventType = "registered"
	EventUpdated      EventType = "updated"
	EventUnregistered EventType = "unregistered"
	EventExpired      EventType = "expired"
)

// Event is a registry change. Entry is the state after the change, or the last state for removals.
type Event struct {
	Type  EventType
	Entry ServerEntry
	At    time.Time
}
