package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
	"github.com/mihaimyh/hookgen/pkg/hookgen/schema"
)

const maxUserIDLen = 255

// Handler serves the generation, quota and admin endpoints
type Handler struct {
	config Config
}

// Generate runs the pipeline and returns the validated result as the response body.
func (h *Handler) Generate(c *gin.Context) {
	var req hookgen.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Missing required fields: niche, videoStyle, and topic are required", err)
		return
	}
	if req.UserID == "" {
		req.UserID = h.config.GetUserID(c)
	}

	outcome, err := h.config.Service.Generate(h.requestContext(c), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if outcome.Remaining >= 0 {
		c.Header("X-Quota-Remaining", strconv.Itoa(outcome.Remaining))
	}
	if outcome.GenerationID != "" {
		c.Header("X-Generation-ID", outcome.GenerationID)
	}
	c.JSON(http.StatusOK, outcome.Result)
}

// Analyze scores a single hook and body.
func (h *Handler) Analyze(c *gin.Context) {
	var req hookgen.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Missing required fields: hook and body are required", err)
		return
	}

	analysis, err := h.config.Service.Analyze(h.requestContext(c), req)
	if err != nil {
		if errors.Is(err, hookgen.ErrInvalidRequest) {
			h.badRequest(c, "Missing required fields: hook and body are required", err)
			return
		}
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Quota returns the caller's daily standing.
func (h *Handler) Quota(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	rec, decision, err := h.config.Service.Usage(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, QuotaResponse{
		UserID:           userID,
		IsPro:            decision.IsPro,
		IsAdmin:          h.config.Access.IsAdmin(c.Request.Context(), userID),
		Limit:            decision.Limit,
		Used:             rec.GenerationsToday,
		Remaining:        decision.Remaining,
		GenerationsTotal: rec.GenerationsTotal,
		ResetAt:          decision.ResetAt,
	})
}

// SetOffline marks the caller offline, typically from a page-unload beacon.
func (h *Handler) SetOffline(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	if err := h.config.Admin.SetOffline(c.Request.Context(), userID); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListUsers returns every quota record, newest first.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.config.Admin.ListUsers(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, UsersResponse{Users: users})
}

// Stats returns dashboard totals.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.config.Admin.Stats(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CreateUser creates a fresh quota record.
func (h *Handler) CreateUser(c *gin.Context) {
	var u hookgen.NewUser
	if err := c.ShouldBindJSON(&u); err != nil {
		h.badRequest(c, "Invalid user", err)
		return
	}
	if err := schema.Validator().Struct(u); err != nil {
		h.badRequest(c, "Invalid user", err)
		return
	}

	rec, err := h.config.Admin.CreateUser(c.Request.Context(), u)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// SetPro sets or toggles a user's pro flag.
func (h *Handler) SetPro(c *gin.Context) {
	userID := c.Param("id")

	var req ProRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "Invalid request body", err)
			return
		}
	}

	ctx := c.Request.Context()
	var isPro bool
	var err error
	if req.IsPro == nil {
		isPro, err = h.config.Admin.TogglePro(ctx, userID)
	} else {
		isPro = *req.IsPro
		err = h.config.Admin.SetPro(ctx, userID, isPro)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "isPro": isPro})
}

// ResetGenerations zeroes a user's daily counter.
func (h *Handler) ResetGenerations(c *gin.Context) {
	if err := h.config.Admin.ResetGenerations(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteUser removes a user's quota record.
func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.config.Admin.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// userID resolves the caller from the extractor or the userId query parameter.
func (h *Handler) userID(c *gin.Context) (string, bool) {
	userID := h.config.GetUserID(c)
	if userID == "" {
		userID = c.Query("userId")
	}
	if userID == "" {
		h.handleError(c, hookgen.ErrUnauthenticated)
		return "", false
	}
	if len(userID) > maxUserIDLen {
		h.badRequest(c, "Invalid user ID format", fmt.Errorf("user ID longer than %d characters", maxUserIDLen))
		return "", false
	}
	return userID, true
}

func (h *Handler) badRequest(c *gin.Context, msg string, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:  msg,
		Detail: hookgen.RedactSecrets(err.Error()),
	})
}
