package handlers

import (
	"net/http"
	"testing"

	"masterserver/api"
	"masterserver/service"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAPIValidator_InvalidDocument(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"not yaml", "{{{"},
		{"missing info", "openapi: 3.0.3\npaths: {}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOpenAPIValidator([]byte(tt.spec))
			assert.Error(t, err)
		})
	}
}

func TestNewOpenAPIValidator_EmbeddedDocuments(t *testing.T) {
	for name, spec := range map[string][]byte{
		"registration": api.RegistrationOpenAPI,
		"discovery":    api.DiscoveryOpenAPI,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewOpenAPIValidator(spec)
			require.NoError(t, err)
		})
	}
}

func TestOpenAPIValidator(t *testing.T) {
	e := newTestEcho(t, api.RegistrationOpenAPI)
	called := 0
	ok := func(c echo.Context) error {
		called++
		return c.NoContent(http.StatusNoContent)
	}
	e.POST("/v1/register", ok)
	e.GET("/undocumented", ok)

	tests := []struct {
		name       string
		method     string
		target     string
		body       any
		wantStatus int
	}{
		{"valid body", http.MethodPost, "/v1/register", RegisterRequest{InstanceId: "a", Port: 1}, http.StatusNoContent},
		{"missing required property", http.MethodPost, "/v1/register", map[string]any{"port": 1}, http.StatusBadRequest},
		{"pattern mismatch", http.MethodPost, "/v1/register", map[string]any{"instance_id": "a b", "port": 1}, http.StatusBadRequest},
		{"undocumented path passes through", http.MethodGet, "/undocumented", nil, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := called
			rec := do(e, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusBadRequest {
				assert.Equal(t, service.ErrMalformed, errorCode(t, rec))
				assert.Equal(t, before, called)
			} else {
				assert.Equal(t, before+1, called)
			}
		})
	}
}
