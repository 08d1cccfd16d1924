package handlers

import (
	"time"

	"masterserver/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// NewRateLimiter limits requests per caller IP. Idle callers are forgotten after three minutes.
func NewRateLimiter(rps float64, burst int) echo.MiddlewareFunc {
	config := middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return service.NewForbiddenError("caller address is unknown")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return service.NewRateLimitedError("too many requests from " + identifier)
		},
	}
	return middleware.RateLimiterWithConfig(config)
}
