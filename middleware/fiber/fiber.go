// Package fiber provides Fiber middleware that enforces the hookgen daily quota.
package fiber

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// UserIDKey is the fiber locals key under which the admitted user ID is stored
const UserIDKey = "hookgen.userID"

// UserIDExtractor extracts the user ID from a Fiber context
// Return empty string if user is not authenticated
type UserIDExtractor func(c *fiber.Ctx) string

// Config holds middleware configuration
type Config struct {
	// Guard runs the quota check and commit (required)
	Guard *hookgen.Guard

	// GetUserID extracts user ID from context (required)
	GetUserID UserIDExtractor

	// OnQuotaExceeded is called when quota is exceeded
	// If nil, returns 429 JSON with hookgen.ExceededResponse
	OnQuotaExceeded func(c *fiber.Ctx, a hookgen.Admission) error

	// OnUnauthorized is called when user is not authenticated
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c *fiber.Ctx) error
}

// Middleware checks the quota before the next handler runs and commits one
// generation when the chain finishes with a 2xx status.
func Middleware(cfg Config) fiber.Handler {
	if cfg.Guard == nil {
		panic("hookgen/fiber: Config.Guard is required")
	}
	if cfg.GetUserID == nil {
		panic("hookgen/fiber: Config.GetUserID is required")
	}

	return func(c *fiber.Ctx) error {
		userID := cfg.GetUserID(c)
		if userID == "" {
			if cfg.OnUnauthorized != nil {
				return cfg.OnUnauthorized(c)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User authentication required"})
		}

		ctx := c.UserContext()
		adm := cfg.Guard.Admit(ctx, userID)
		for k, v := range adm.Headers() {
			c.Set(k, v)
		}
		if !adm.Allowed() {
			if cfg.OnQuotaExceeded != nil {
				return cfg.OnQuotaExceeded(c, adm)
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(adm.Exceeded())
		}

		c.Locals(UserIDKey, userID)
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		_ = cfg.Guard.Settle(ctx, adm, status) //nolint:errcheck // logged by the guard
		return err
	}
}

// FromHeader returns a UserIDExtractor that reads the user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Get(headerName)
	}
}

// FromLocals returns a UserIDExtractor that reads a string set by upstream auth middleware
func FromLocals(key string) UserIDExtractor {
	return func(c *fiber.Ctx) string {
		if userID, ok := c.Locals(key).(string); ok {
			return userID
		}
		return ""
	}
}
