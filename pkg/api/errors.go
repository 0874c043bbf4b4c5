package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// Error codes returned to clients
const (
	CodeTimeout     = "TIMEOUT"
	CodeRateLimit   = "RATE_LIMIT"
	CodeServerError = "SERVER_ERROR"
)

// errorStatus maps a pipeline error onto the HTTP status and body the client sees.
// Every message is redacted; upstream detail is only included in development.
func errorStatus(err error, development bool) (int, ErrorResponse) {
	var quotaErr *hookgen.QuotaExceededError
	switch {
	case errors.Is(err, hookgen.ErrInvalidRequest):
		return http.StatusBadRequest, ErrorResponse{
			Error:  "Missing required fields: niche, videoStyle, and topic are required",
			Detail: hookgen.RedactSecrets(err.Error()),
		}
	case errors.Is(err, hookgen.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorResponse{Error: "User authentication required"}
	case errors.Is(err, hookgen.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: "Admin access required"}
	case errors.Is(err, hookgen.ErrRecordNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "User not found"}
	case errors.As(err, &quotaErr):
		remaining := 0
		detail := fmt.Sprintf("You've used all %d generations today.", quotaErr.Decision.Limit)
		if !quotaErr.Decision.IsPro {
			detail += " Upgrade to Pro for more!"
		}
		return http.StatusTooManyRequests, ErrorResponse{
			Error:     "Daily generation limit reached",
			Detail:    detail,
			Remaining: &remaining,
		}
	}

	switch hookgen.Classify(err) {
	case hookgen.ClassTimeout:
		return http.StatusServiceUnavailable, ErrorResponse{
			Error:  "Generation timed out",
			Detail: "The AI took too long to respond. Please try again.",
			Code:   CodeTimeout,
		}
	case hookgen.ClassRateLimit:
		return http.StatusTooManyRequests, ErrorResponse{
			Error:  "AI service rate limit",
			Detail: "Too many requests to AI service. Please wait a moment.",
			Code:   CodeRateLimit,
		}
	}

	detail := "An error occurred"
	if development {
		detail = hookgen.RedactSecrets(err.Error())
	}
	return http.StatusInternalServerError, ErrorResponse{
		Error:  "Generation failed",
		Detail: detail,
		Code:   CodeServerError,
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status, body := errorStatus(err, h.config.Development)
	if status >= http.StatusInternalServerError {
		h.config.Logger.Error("request failed",
			hookgen.Field{Key: "request_id", Value: c.GetString(requestIDKey)},
			hookgen.Field{Key: "path", Value: c.FullPath()},
			hookgen.Field{Key: "status", Value: status},
			hookgen.Field{Key: "error", Value: hookgen.RedactSecrets(err.Error())},
		)
	}
	c.AbortWithStatusJSON(status, body)
}
