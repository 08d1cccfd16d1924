package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"masterserver/api"

	"github.com/go-kit/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{RateLimitRPS: 1000, RateLimitBurst: 1000, IdleTimeout: time.Minute}
}

func TestNewEcho_DiscoveryAllowsCrossOrigin(t *testing.T) {
	e, err := newEcho(api.DiscoveryOpenAPI, testConfig(), log.NewNopLogger(), middleware.CORS())
	require.NoError(t, err)
	e.GET("/v1/servers", func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]any{}) })

	tests := []struct {
		name       string
		method     string
		headers    map[string]string
		wantStatus int
	}{
		{
			name:       "simple request",
			method:     http.MethodGet,
			headers:    map[string]string{echo.HeaderOrigin: "https://browser.example"},
			wantStatus: http.StatusOK,
		},
		{
			name:   "preflight",
			method: http.MethodOptions,
			headers: map[string]string{
				echo.HeaderOrigin:                     "https://browser.example",
				echo.HeaderAccessControlRequestMethod: http.MethodGet,
			},
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/servers", nil)
			req.RemoteAddr = "192.0.2.1:40000"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		})
	}
}

func TestNewEcho_RegistrationHasNoCORS(t *testing.T) {
	e, err := newEcho(api.RegistrationOpenAPI, testConfig(), log.NewNopLogger())
	require.NoError(t, err)
	e.POST("/v1/register", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/v1/register", nil)
	req.RemoteAddr = "192.0.2.1:40000"
	req.Header.Set(echo.HeaderOrigin, "https://browser.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
