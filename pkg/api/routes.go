package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// Register mounts every endpoint under /api on r.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api", RequestID(), h.AccessLog())
	api.POST("/generate", h.Generate)
	api.POST("/analyze", h.Analyze)
	api.GET("/quota", h.Quota)
	api.POST("/set-offline", h.SetOffline)

	admin := api.Group("/admin", h.RequireAdmin())
	admin.GET("/users", h.ListUsers)
	admin.POST("/users", h.CreateUser)
	admin.GET("/stats", h.Stats)
	admin.POST("/users/:id/pro", h.SetPro)
	admin.POST("/users/:id/reset", h.ResetGenerations)
	admin.DELETE("/users/:id", h.DeleteUser)
}

// RequestID echoes the X-Request-ID header, generating one when absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequireAdmin aborts with 401 or 403 unless the caller resolves to an admin.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := h.config.GetUserID(c)
		if userID == "" {
			h.handleError(c, hookgen.ErrUnauthenticated)
			return
		}
		if !h.config.Access.IsAdmin(c.Request.Context(), userID) {
			h.config.Logger.Warn("admin access denied",
				hookgen.Field{Key: "user_id", Value: userID},
				hookgen.Field{Key: "path", Value: c.FullPath()},
			)
			h.handleError(c, hookgen.ErrForbidden)
			return
		}
		c.Next()
	}
}

// AccessLog logs one line per request.
func (h *Handler) AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.config.Logger.Info("request",
			hookgen.Field{Key: "request_id", Value: c.GetString(requestIDKey)},
			hookgen.Field{Key: "method", Value: c.Request.Method},
			hookgen.Field{Key: "path", Value: c.FullPath()},
			hookgen.Field{Key: "status", Value: c.Writer.Status()},
			hookgen.Field{Key: "latency", Value: time.Since(start)},
		)
	}
}

// requestContext returns the request context carrying the request ID.
func (h *Handler) requestContext(c *gin.Context) context.Context {
	id := c.GetString(requestIDKey)
	if id == "" {
		return c.Request.Context()
	}
	return hookgen.WithRequestID(c.Request.Context(), id)
}
