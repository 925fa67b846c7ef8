// Package handler exposes read-only call record endpoints for operators.
package handler

import (
	"net/http"
	"time"

	"autodial_backend/internal/calls/repository"
	"autodial_backend/internal/calls/transport"
	"autodial_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const msgInvalidRequest = "invalid request"

// defaultStaleAge matches the reconcile tool's default threshold.
const defaultStaleAge = 30 * time.Minute

// Handler handles HTTP requests for call records.
type Handler struct {
	repo *repository.Repository
}

// New creates a new calls handler.
func New(repo *repository.Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes registers the call record routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stale", h.ListStale)
	rg.GET("/:callId", h.GetByID)
}

// GetByID handles GET /api/v1/calls/:callId
func (h *Handler) GetByID(c *gin.Context) {
	rec, err := h.repo.GetByCallID(c.Request.Context(), c.Param("callId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCallRecordResponse(rec))
}

// ListStale handles GET /api/v1/calls/stale. It reports records stuck in a
// non-terminal status; it never mutates them.
func (h *Handler) ListStale(c *gin.Context) {
	olderThan := defaultStaleAge
	if raw := c.Query("olderThan"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "olderThan must be a positive duration")
			return
		}
		olderThan = parsed
	}

	recs, err := h.repo.ListStaleNonTerminal(c.Request.Context(), olderThan)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.StaleCallsResponse{
		OlderThan: olderThan.String(),
		Count:     len(recs),
		Calls:     transport.ToCallRecordResponses(recs),
	})
}
