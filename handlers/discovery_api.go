package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

// ServerInfo defines model for ServerInfo.
type ServerInfo struct {
	Address  string                 `json:"address"`
	Port     int                    `json:"port"`
	Metadata map[string]interface{} `json:"metadata"`
	AgeMs    int64                  `json:"age_ms"`
}

// ServersResponse defines model for ServersResponse.
type ServersResponse struct {
	Servers    []ServerInfo `json:"servers"`
	NextCursor *string      `json:"next_cursor,omitempty"`
	End        bool         `json:"end"`
}

// SchemaResponse defines model for SchemaResponse.
type SchemaResponse struct {
	Fields map[string]string `json:"fields"`
}

// ListServersParams defines parameters for ListServers.
type ListServersParams struct {
	// Filter Condition in the form field:operator:value.
	Filter *[]string `form:"filter,omitempty" json:"filter,omitempty"`

	// Cursor next_cursor of the previous page.
	Cursor *string `form:"cursor,omitempty" json:"cursor,omitempty"`

	// Limit Page size. Values above the server maximum are clamped.
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// DiscoveryServerInterface represents all server handlers of the discovery API.
type DiscoveryServerInterface interface {
	// List live servers matching every filter, ordered by identity.
	// (GET /v1/servers)
	ListServers(ctx echo.Context, params ListServersParams) error
	// Metadata fields servers may report and clients may filter on.
	// (GET /v1/schema)
	GetSchema(ctx echo.Context) error
	// Upgrade to a WebSocket discovery session.
	// (GET /v1/watch)
	Watch(ctx echo.Context) error
}

// DiscoveryServerWrapper converts echo contexts to parameters.
type DiscoveryServerWrapper struct {
	Handler DiscoveryServerInterface
}

// ListServers converts echo context to params.
func (w *DiscoveryServerWrapper) ListServers(ctx echo.Context) error {
	var err error

	// Parameter object where we will unmarshal all parameters from the context
	var params ListServersParams
	// ------------- Optional query parameter "filter" -------------

	err = runtime.BindQueryParameter("form", true, false, "filter", ctx.QueryParams(), &params.Filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter filter: %s", err))
	}

	// ------------- Optional query parameter "cursor" -------------

	err = runtime.BindQueryParameter("form", true, false, "cursor", ctx.QueryParams(), &params.Cursor)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter cursor: %s", err))
	}

	// ------------- Optional query parameter "limit" -------------

	err = runtime.BindQueryParameter("form", true, false, "limit", ctx.QueryParams(), &params.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter limit: %s", err))
	}

	// Invoke the callback with all the unmarshaled arguments
	err = w.Handler.ListServers(ctx, params)
	return err
}

// GetSchema converts echo context to params.
func (w *DiscoveryServerWrapper) GetSchema(ctx echo.Context) error {
	return w.Handler.GetSchema(ctx)
}

// Watch converts echo context to params.
func (w *DiscoveryServerWrapper) Watch(ctx echo.Context) error {
	return w.Handler.Watch(ctx)
}

// RegisterDiscoveryHandlers adds each discovery route to the router.
func RegisterDiscoveryHandlers(router EchoRouter, si DiscoveryServerInterface) {
	RegisterDiscoveryHandlersWithBaseURL(router, si, "")
}

// RegisterDiscoveryHandlersWithBaseURL registers the discovery routes under baseURL.
func RegisterDiscoveryHandlersWithBaseURL(router EchoRouter, si DiscoveryServerInterface, baseURL string) {
	wrapper := DiscoveryServerWrapper{
		Handler: si,
	}

	router.GET(baseURL+"/v1/servers", wrapper.ListServers)
	router.GET(baseURL+"/v1/schema", wrapper.GetSchema)
	router.GET(baseURL+"/v1/watch", wrapper.Watch)
}
