// Package gin provides Gin middleware that enforces the hookgen daily quota.
package gin

import (
	"net/http"

	gongin "github.com/gin-gonic/gin"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// UserIDKey is the gin context key under which the admitted user ID is stored
const UserIDKey = "hookgen.userID"

// UserIDExtractor extracts the user ID from a Gin context
// Return empty string if user is not authenticated
type UserIDExtractor func(c *gongin.Context) string

// Config holds middleware configuration
type Config struct {
	// Guard runs the quota check and commit (required)
	Guard *hookgen.Guard

	// GetUserID extracts user ID from context (required)
	GetUserID UserIDExtractor

	// QuotaExceededStatusCode is the HTTP status code to return when quota is exceeded
	// Default: 429 (Too Many Requests)
	QuotaExceededStatusCode int

	// OnQuotaExceeded is called when quota is exceeded
	// If nil, responds with QuotaExceededStatusCode and hookgen.ExceededResponse
	OnQuotaExceeded func(c *gongin.Context, a hookgen.Admission)

	// OnUnauthorized is called when user is not authenticated
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c *gongin.Context)
}

// Middleware checks the quota before the handler chain runs and commits one
// generation when the chain answers with a 2xx status.
func Middleware(cfg Config) gongin.HandlerFunc {
	if cfg.Guard == nil {
		panic("hookgen/gin: Config.Guard is required")
	}
	if cfg.GetUserID == nil {
		panic("hookgen/gin: Config.GetUserID is required")
	}
	if cfg.QuotaExceededStatusCode == 0 {
		cfg.QuotaExceededStatusCode = http.StatusTooManyRequests
	}

	return func(c *gongin.Context) {
		userID := cfg.GetUserID(c)
		if userID == "" {
			if cfg.OnUnauthorized != nil {
				cfg.OnUnauthorized(c)
			} else {
				c.JSON(http.StatusUnauthorized, gongin.H{"error": "User authentication required"})
			}
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		adm := cfg.Guard.Admit(ctx, userID)
		for k, v := range adm.Headers() {
			c.Header(k, v)
		}
		if !adm.Allowed() {
			if cfg.OnQuotaExceeded != nil {
				cfg.OnQuotaExceeded(c, adm)
			} else {
				c.JSON(cfg.QuotaExceededStatusCode, adm.Exceeded())
			}
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
		_ = cfg.Guard.Settle(ctx, adm, c.Writer.Status()) //nolint:errcheck // logged by the guard
	}
}

// FromHeader returns a UserIDExtractor that reads the user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c *gongin.Context) string {
		return c.GetHeader(headerName)
	}
}

// FromContext returns a UserIDExtractor that reads a value set by upstream auth middleware
func FromContext(key string) UserIDExtractor {
	return func(c *gongin.Context) string {
		return c.GetString(key)
	}
}
