// Package echo provides Echo middleware that enforces the hookgen daily quota.
package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// UserIDKey is the echo context key under which the admitted user ID is stored
const UserIDKey = "hookgen.userID"

// UserIDExtractor extracts the user ID from an Echo context
// Return empty string if user is not authenticated
type UserIDExtractor func(c echo.Context) string

// Config holds middleware configuration
type Config struct {
	// Guard runs the quota check and commit (required)
	Guard *hookgen.Guard

	// GetUserID extracts user ID from context (required)
	GetUserID UserIDExtractor

	// OnQuotaExceeded is called when quota is exceeded
	// If nil, returns 429 JSON with hookgen.ExceededResponse
	OnQuotaExceeded func(c echo.Context, a hookgen.Admission) error

	// OnUnauthorized is called when user is not authenticated
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c echo.Context) error
}

// Middleware checks the quota before next runs and commits one generation
// when next succeeds with a 2xx status. A handler error never counts.
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.Guard == nil {
		panic("hookgen/echo: Config.Guard is required")
	}
	if cfg.GetUserID == nil {
		panic("hookgen/echo: Config.GetUserID is required")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := cfg.GetUserID(c)
			if userID == "" {
				if cfg.OnUnauthorized != nil {
					return cfg.OnUnauthorized(c)
				}
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "User authentication required"})
			}

			ctx := c.Request().Context()
			adm := cfg.Guard.Admit(ctx, userID)
			for k, v := range adm.Headers() {
				c.Response().Header().Set(k, v)
			}
			if !adm.Allowed() {
				if cfg.OnQuotaExceeded != nil {
					return cfg.OnQuotaExceeded(c, adm)
				}
				return c.JSON(http.StatusTooManyRequests, adm.Exceeded())
			}

			c.Set(UserIDKey, userID)
			var status int
			err := next(c)
			if err != nil {
				status = statusOf(err)
			} else {
				status = c.Response().Status
			}
			_ = cfg.Guard.Settle(ctx, adm, status) //nolint:errcheck // logged by the guard
			return err
		}
	}
}

// FromHeader returns a UserIDExtractor that reads the user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c echo.Context) string {
		return c.Request().Header.Get(headerName)
	}
}

// FromContext returns a UserIDExtractor that reads a string set by upstream auth middleware
func FromContext(key string) UserIDExtractor {
	return func(c echo.Context) string {
		if userID, ok := c.Get(key).(string); ok {
			return userID
		}
		return ""
	}
}

// statusOf returns the HTTP status an echo handler error maps to.
func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
