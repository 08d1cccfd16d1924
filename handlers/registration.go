package handlers

import (
	"fmt"
	"net/http"
	"time"

	"masterserver/domain"
	"masterserver/helpers"
	"masterserver/interfaces"
	"masterserver/service"
	"masterserver/session"

	"github.com/go-kit/log"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// RegistrationOptions configures RegistrationServer.
type RegistrationOptions struct {
	// TTL is reported to servers so they can pace their heartbeats.
	TTL time.Duration
	// IdleTimeout closes WebSocket sessions without traffic.
	IdleTimeout time.Duration
	// Schema is the metadata schema enforced on REGISTER and metadata updates.
	Schema domain.Schema
}

// RegistrationServer implements RegistrationServerInterface on top of the registry.
//
// Every HTTP request is a stateless session whose caller presents identity and generation explicitly. A WebSocket
// connection is a persistent session bound to the identity it registered. Both go through the same operations
// below, so the registry cannot tell the transports apart.
type RegistrationServer struct {
	registry          interfaces.Registry
	sessions          *session.Manager
	clock             interfaces.TimeProvider
	schema            domain.Schema
	ttl               time.Duration
	heartbeatInterval time.Duration
	idleTimeout       time.Duration
	upgrader          websocket.Upgrader
	conns             *connSet
	logger            log.Logger
}

var _ RegistrationServerInterface = (*RegistrationServer)(nil)

// NewRegistrationServer creates a new RegistrationServer. Panics on nil dependencies or an empty schema.
func NewRegistrationServer(
	registry interfaces.Registry,
	sessions *session.Manager,
	clock interfaces.TimeProvider,
	opts RegistrationOptions,
	logger log.Logger,
) *RegistrationServer {
	if len(opts.Schema) == 0 {
		panic("handlers.registration.go: schema is required")
	}
	if opts.TTL <= 0 {
		panic("handlers.registration.go: ttl must be positive")
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 2 * opts.TTL
	}
	return &RegistrationServer{
		registry:          helpers.NilPanic(registry, "handlers.registration.go: registry is required"),
		sessions:          helpers.NilPanic(sessions, "handlers.registration.go: sessions is required"),
		clock:             helpers.NilPanic(clock, "handlers.registration.go: clock is required"),
		schema:            opts.Schema,
		ttl:               opts.TTL,
		heartbeatInterval: opts.TTL / 3,
		idleTimeout:       opts.IdleTimeout,
		upgrader:          newUpgrader(),
		conns:             newConnSet(),
		logger:            log.WithPrefix(helpers.NilPanic(logger, "handlers.registration.go: logger is required"), "component", "RegistrationServer"),
	}
}

// Register (POST /v1/register) upserts the caller's instance and returns the generation to heartbeat with.
// Returns 400 on validation error.
func (h *RegistrationServer) Register(ectx echo.Context) error {
	var req RegisterRequest
	if err := ectx.Bind(&req); err != nil {
		return service.NewMalformedError("invalid request body", err)
	}

	sess := h.sessions.Open(domain.RoleRegistration, domain.TransportStateless, ectx.RealIP())
	resp, err := h.register(sess, req)
	if err != nil {
		return err
	}
	return ectx.JSON(http.StatusOK, resp)
}

// Heartbeat (POST /v1/heartbeat) refreshes an entry. Returns 409 for a superseded generation and 404 for an
// expired or unknown identity; in both cases the server must register again.
func (h *RegistrationServer) Heartbeat(ectx echo.Context) error {
	var req HeartbeatRequest
	if err := ectx.Bind(&req); err != nil {
		return service.NewMalformedError("invalid request body", err)
	}

	sess := h.sessions.Open(domain.RoleRegistration, domain.TransportStateless, ectx.RealIP())
	resp, err := h.heartbeat(sess, req)
	if err != nil {
		return err
	}
	return ectx.JSON(http.StatusOK, resp)
}

// Unregister (POST /v1/unregister) removes an entry. A generation mismatch is acknowledged with status "stale"
// and leaves the entry alone.
func (h *RegistrationServer) Unregister(ectx echo.Context) error {
	var req UnregisterRequest
	if err := ectx.Bind(&req); err != nil {
		return service.NewMalformedError("invalid request body", err)
	}

	sess := h.sessions.Open(domain.RoleRegistration, domain.TransportStateless, ectx.RealIP())
	resp, err := h.unregister(sess, req)
	if err != nil {
		return err
	}
	return ectx.JSON(http.StatusOK, resp)
}

func (h *RegistrationServer) register(sess *session.Session, req RegisterRequest) (RegisterResponse, error) {
	reg, err := fromRegisterRequest(req, sess.RemoteHost(), h.schema)
	if err != nil {
		return RegisterResponse{}, err
	}

	entry, err := h.registry.Upsert(reg)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("register failed to upsert %s, err: %w", reg.Identity, err)
	}
	if sess.Transport() == domain.TransportPersistent {
		sess.Bind(entry.Identity, entry.Generation)
	}
	return toRegisterResponse(entry, h.ttl, h.heartbeatInterval), nil
}

func (h *RegistrationServer) heartbeat(sess *session.Session, req HeartbeatRequest) (HeartbeatResponse, error) {
	gen, err := fromGeneration(req.Generation)
	if err != nil {
		return HeartbeatResponse{}, err
	}
	id, gen, err := sess.Resolve(domain.Identity(req.Identity), gen)
	if err != nil {
		return HeartbeatResponse{}, err
	}

	var status domain.RefreshStatus
	if req.Metadata != nil {
		metadata, err := fromMetadata(req.Metadata, h.schema)
		if err != nil {
			return HeartbeatResponse{}, err
		}
		status = h.registry.Update(id, gen, metadata)
	} else {
		status = h.registry.Refresh(id, gen)
	}

	switch status {
	case domain.RefreshOK:
		return HeartbeatResponse{Status: StatusOK, Generation: int64(gen)}, nil
	case domain.RefreshStale:
		return HeartbeatResponse{}, service.NewStaleGenerationError(
			fmt.Sprintf("generation %d of %s is superseded, register again", gen, id))
	default:
		sess.Unbind(id)
		return HeartbeatResponse{}, service.NewUnknownIdentityError(
			fmt.Sprintf("%s is not registered, register again", id))
	}
}

func (h *RegistrationServer) unregister(sess *session.Session, req UnregisterRequest) (UnregisterResponse, error) {
	gen, err := fromGeneration(req.Generation)
	if err != nil {
		return UnregisterResponse{}, err
	}
	id, gen, err := sess.Resolve(domain.Identity(req.Identity), gen)
	if err != nil {
		return UnregisterResponse{}, err
	}

	status := h.registry.Remove(id, gen)
	if status != domain.RemoveStale {
		sess.Unbind(id)
	}
	return UnregisterResponse{Status: string(status)}, nil
}

// Shutdown closes every open registration session. Entries stay registered until they expire.
func (h *RegistrationServer) Shutdown() {
	h.conns.closeAll()
}
