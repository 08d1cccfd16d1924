package domain

// Role is the listener a session was accepted on.
type Role string

const (
	RoleRegistration Role = "registration"
	RoleDiscovery    Role = "discovery"
)

// Transport tells whether a session spans many messages (WebSocket) or a single request (HTTP).
type Transport string

const (
	TransportStateless  Transport = "stateless"
	TransportPersistent Transport = "persistent"
)
