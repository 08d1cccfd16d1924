package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"masterserver/service"

	"github.com/go-kit/log"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestNewRateLimiter(t *testing.T) {
	e := echo.New()
	e.IPExtractor = echo.ExtractIPDirect()
	service.RegisterErrorHandler(e, log.NewNopLogger())
	e.Use(NewRateLimiter(0.001, 2))
	e.GET("/v1/servers", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	get := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/servers", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, get("192.0.2.1:1000").Code)
	assert.Equal(t, http.StatusNoContent, get("192.0.2.1:1001").Code)

	rec := get("192.0.2.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, service.ErrRateLimited, errorCode(t, rec))

	// Callers are limited independently.
	assert.Equal(t, http.StatusNoContent, get("192.0.2.2:1000").Code)
}
