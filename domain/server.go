package domain

import (
	"strings"
	"time"
)

// Identity is the registry key of a server instance: the reporting host plus the server-supplied instance id,
// so several instances behind one address stay distinct.
type Identity string

// NewIdentity builds the identity for instanceID reported from host.
func NewIdentity(host, instanceID string) Identity {
	return Identity(host + "/" + instanceID)
}

// Host returns the address part of the identity, the host the server registered from.
func (i Identity) Host() string {
	if idx := strings.LastIndexByte(string(i), '/'); idx >= 0 {
		return string(i[:idx])
	}
	return ""
}

// InstanceID returns the server-supplied part of the identity.
func (i Identity) InstanceID() string {
	if idx := strings.LastIndexByte(string(i), '/'); idx >= 0 {
		return string(i[idx+1:])
	}
	return string(i)
}

// Generation counts REGISTERs of one identity. Heartbeats must present the current value.
type Generation uint64

// Registration is the payload of a REGISTER after validation.
type Registration struct {
	Identity   Identity
	InstanceID string
	Address    string
	Port       int
	Metadata   Metadata
}

// ServerEntry is one live server instance as held by the registry.
// Values handed out by the registry are copies; Metadata must be treated as read-only.
type ServerEntry struct {
	Identity          Identity
	InstanceID        string
	AdvertisedAddress string
	AdvertisedPort    int
	Metadata          Metadata
	LastHeartbeat     time.Time
	RegisteredAt      time.Time
	Generation        Generation
}

// Expired reports whether the entry is logically dead at now for the given ttl.
func (e ServerEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.LastHeartbeat) > ttl
}

// Age is the time elapsed since the last accepted heartbeat.
func (e ServerEntry) Age(now time.Time) time.Duration {
	age := now.Sub(e.LastHeartbeat)
	if age < 0 {
		return 0
	}
	return age
}

// RefreshStatus is the outcome of a HEARTBEAT.
type RefreshStatus string

const (
	RefreshOK      RefreshStatus = "ok"
	RefreshStale   RefreshStatus = "stale"
	RefreshUnknown RefreshStatus = "unknown"
)

// RemoveStatus is the outcome of an UNREGISTER. Only RemoveOK changes the registry.
type RemoveStatus string

const (
	RemoveOK      RemoveStatus = "removed"
	RemoveStale   RemoveStatus = "stale"
	RemoveUnknown RemoveStatus = "unknown"
)
