package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// DefaultUserIDHeader carries the caller's user ID when the body does not
const DefaultUserIDHeader = "X-User-ID"

// Config holds configuration for the HTTP handler
type Config struct {
	// Service runs the generation pipeline (required)
	Service *hookgen.Service

	// Admin exposes back-office operations (required)
	Admin *hookgen.Admin

	// Access resolves admin status for the admin routes (required)
	Access *hookgen.Access

	// GetUserID extracts the caller's user ID from the request
	// If nil, reads the X-User-ID header
	GetUserID func(*gin.Context) string

	// Development includes redacted upstream error text in 500 responses
	Development bool

	// Logger is used for structured logging (default: NoopLogger)
	Logger hookgen.Logger
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Service == nil {
		return fmt.Errorf("service is required")
	}
	if c.Admin == nil {
		return fmt.Errorf("admin is required")
	}
	if c.Access == nil {
		return fmt.Errorf("access is required")
	}
	return nil
}

// NewHandler creates a new HTTP handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.GetUserID == nil {
		config.GetUserID = FromHeader(DefaultUserIDHeader)
	}
	if config.Logger == nil {
		config.Logger = &hookgen.NoopLogger{}
	}
	return &Handler{config: config}, nil
}

// FromHeader returns a GetUserID function that extracts user ID from a header
func FromHeader(headerName string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		return c.GetHeader(headerName)
	}
}

// FromContext returns a GetUserID function that reads a value set by upstream auth middleware
func FromContext(key string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		return c.GetString(key)
	}
}
