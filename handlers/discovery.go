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

// DiscoveryOptions configures DiscoveryServer.
type DiscoveryOptions struct {
	Paging      Paging
	IdleTimeout time.Duration
	Schema      domain.Schema
}

// DiscoveryServer implements DiscoveryServerInterface. It only reads the directory.
type DiscoveryServer struct {
	directory   interfaces.Directory
	events      *service.Broadcaster
	sessions    *session.Manager
	clock       interfaces.TimeProvider
	schema      domain.Schema
	paging      Paging
	idleTimeout time.Duration
	upgrader    websocket.Upgrader
	conns       *connSet
	logger      log.Logger
}

var _ DiscoveryServerInterface = (*DiscoveryServer)(nil)

// NewDiscoveryServer creates a new DiscoveryServer. Panics on nil dependencies, an empty schema or a non-positive
// default page size.
func NewDiscoveryServer(
	directory interfaces.Directory,
	events *service.Broadcaster,
	sessions *session.Manager,
	clock interfaces.TimeProvider,
	opts DiscoveryOptions,
	logger log.Logger,
) *DiscoveryServer {
	if len(opts.Schema) == 0 {
		panic("handlers.discovery.go: schema is required")
	}
	if opts.Paging.Default <= 0 {
		panic("handlers.discovery.go: default page size must be positive")
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = time.Minute
	}
	return &DiscoveryServer{
		directory:   helpers.NilPanic(directory, "handlers.discovery.go: directory is required"),
		events:      helpers.NilPanic(events, "handlers.discovery.go: events is required"),
		sessions:    helpers.NilPanic(sessions, "handlers.discovery.go: sessions is required"),
		clock:       helpers.NilPanic(clock, "handlers.discovery.go: clock is required"),
		schema:      opts.Schema,
		paging:      opts.Paging,
		idleTimeout: opts.IdleTimeout,
		upgrader:    newUpgrader(),
		conns:       newConnSet(),
		logger:      log.WithPrefix(helpers.NilPanic(logger, "handlers.discovery.go: logger is required"), "component", "DiscoveryServer"),
	}
}

// ListServers (GET /v1/servers) returns one page of live servers matching every filter, ordered by identity.
// Returns 400 on an invalid filter, cursor or limit.
func (h *DiscoveryServer) ListServers(ectx echo.Context, params ListServersParams) error {
	query, err := fromListServersParams(params, h.paging, h.schema)
	if err != nil {
		return err
	}
	resp, err := h.list(query)
	if err != nil {
		return err
	}
	return ectx.JSON(http.StatusOK, resp)
}

// GetSchema (GET /v1/schema) returns the metadata schema.
func (h *DiscoveryServer) GetSchema(ectx echo.Context) error {
	return ectx.JSON(http.StatusOK, toSchemaResponse(h.schema))
}

func (h *DiscoveryServer) list(query domain.Query) (ServersResponse, error) {
	page, err := h.directory.List(query)
	if err != nil {
		return ServersResponse{}, fmt.Errorf("listServers failed to list directory, err: %w", err)
	}
	return toServersResponse(page, h.clock.Now()), nil
}

// Shutdown closes every open discovery session.
func (h *DiscoveryServer) Shutdown() {
	h.conns.closeAll()
}
