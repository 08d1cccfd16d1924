package handlers

import (
	"github.com/labstack/echo/v4"
)

// Metadata is the free-form metadata object of the wire formats. Values are narrowed by the metadata schema.
type Metadata map[string]interface{}

// RegisterRequest defines model for RegisterRequest.
type RegisterRequest struct {
	InstanceId string    `json:"instance_id"`
	Address    *string   `json:"address,omitempty"`
	Port       int       `json:"port"`
	Metadata   *Metadata `json:"metadata,omitempty"`
}

// RegisterResponse defines model for RegisterResponse.
type RegisterResponse struct {
	Identity            string `json:"identity"`
	Generation          int64  `json:"generation"`
	TtlMs               int64  `json:"ttl_ms"`
	HeartbeatIntervalMs int64  `json:"heartbeat_interval_ms"`
}

// HeartbeatRequest defines model for HeartbeatRequest.
type HeartbeatRequest struct {
	Identity   string    `json:"identity"`
	Generation int64     `json:"generation"`
	Metadata   *Metadata `json:"metadata,omitempty"`
}

// HeartbeatResponse defines model for HeartbeatResponse.
type HeartbeatResponse struct {
	Status     string `json:"status"`
	Generation int64  `json:"generation"`
}

// UnregisterRequest defines model for UnregisterRequest.
type UnregisterRequest struct {
	Identity   string `json:"identity"`
	Generation int64  `json:"generation"`
}

// UnregisterResponse defines model for UnregisterResponse.
type UnregisterResponse struct {
	Status string `json:"status"`
}

// RegistrationServerInterface represents all server handlers of the registration API.
type RegistrationServerInterface interface {
	// Register or re-register a server instance.
	// (POST /v1/register)
	Register(ctx echo.Context) error
	// Keep a registration alive, optionally replacing its metadata.
	// (POST /v1/heartbeat)
	Heartbeat(ctx echo.Context) error
	// Withdraw a registration.
	// (POST /v1/unregister)
	Unregister(ctx echo.Context) error
	// Upgrade to a WebSocket registration session.
	// (GET /v1/session)
	OpenSession(ctx echo.Context) error
}

// RegistrationServerWrapper converts echo contexts to parameters.
type RegistrationServerWrapper struct {
	Handler RegistrationServerInterface
}

// Register converts echo context to params.
func (w *RegistrationServerWrapper) Register(ctx echo.Context) error {
	return w.Handler.Register(ctx)
}

// Heartbeat converts echo context to params.
func (w *RegistrationServerWrapper) Heartbeat(ctx echo.Context) error {
	return w.Handler.Heartbeat(ctx)
}

// Unregister converts echo context to params.
func (w *RegistrationServerWrapper) Unregister(ctx echo.Context) error {
	return w.Handler.Unregister(ctx)
}

// OpenSession converts echo context to params.
func (w *RegistrationServerWrapper) OpenSession(ctx echo.Context) error {
	return w.Handler.OpenSession(ctx)
}

// EchoRouter is the part of *echo.Echo and *echo.Group the handlers register on.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterRegistrationHandlers adds each registration route to the router.
func RegisterRegistrationHandlers(router EchoRouter, si RegistrationServerInterface) {
	RegisterRegistrationHandlersWithBaseURL(router, si, "")
}

// RegisterRegistrationHandlersWithBaseURL registers the registration routes under baseURL.
func RegisterRegistrationHandlersWithBaseURL(router EchoRouter, si RegistrationServerInterface, baseURL string) {
	wrapper := RegistrationServerWrapper{
		Handler: si,
	}

	router.POST(baseURL+"/v1/register", wrapper.Register)
	router.POST(baseURL+"/v1/heartbeat", wrapper.Heartbeat)
	router.POST(baseURL+"/v1/unregister", wrapper.Unregister)
	router.GET(baseURL+"/v1/session", wrapper.OpenSession)
}
