// Package handler exposes the campaign HTTP endpoints.
package handler

import (
	"net/http"

	"autodial_backend/internal/campaigns/service"
	"autodial_backend/internal/campaigns/transport"
	"autodial_backend/platform/httpkit"
	"autodial_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid campaign id"
)

// Handler handles HTTP requests for campaigns.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new campaigns handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the campaign routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Rename)
	rg.POST("/:id/dispatch", h.Dispatch)
	rg.POST("/:id/pause", h.Pause)
	rg.POST("/:id/resume", h.Resume)
	rg.POST("/:id/stop", h.Stop)
	rg.GET("/:id/stats", h.Stats)
	rg.GET("/:id/responses", h.Responses)
}

// Create handles POST /api/v1/campaigns
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), identity.OperatorID(), service.CreateInput{
		Name:               req.Name,
		NumberList:         req.Numbers,
		RouteName:          req.RouteName,
		CallerID:           req.CallerID,
		Trunk:              req.Trunk,
		CallConcurrency:    req.CallConcurrency,
		NotificationChatID: req.NotificationChatID,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.CreateCampaignResponse{
		Campaign: transport.ToCampaignResponse(result.Campaign),
		Accepted: result.Accepted,
		Invalid:  result.Invalid,
	})
}

// List handles GET /api/v1/campaigns
func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	campaigns, err := h.svc.List(c.Request.Context(), identity.OperatorID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCampaignResponses(campaigns))
}

// Get handles GET /api/v1/campaigns/:id
func (h *Handler) Get(c *gin.Context) {
	operatorID, campaignID, ok := campaignScope(c)
	if !ok {
		return
	}
	campaign, err := h.svc.Get(c.Request.Context(), operatorID, campaignID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCampaignResponse(campaign))
}

// Rename handles PATCH /api/v1/campaigns/:id
func (h *Handler) Rename(c *gin.Context) {
	var req transport.RenameCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	operatorID, campaignID, ok := campaignScope(c)
	if !ok {
		return
	}
	if err := h.svc.Rename(c.Request.Context(), operatorID, campaignID, req.Name); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "renamed"})
}

// Dispatch handles POST /api/v1/campaigns/:id/dispatch
func (h *Handler) Dispatch(c *gin.Context) {
	operatorID, campaignID, ok := campaignScope(c)
	if !ok {
		return
	}
	if err := h.svc.Dispatch(c.Request.Context(), operatorID, campaignID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "dispatching"})
}

// Pause handles POST /api/v1/campaigns/:id/pause
func (h *Handler) Pause(c *gin.Context) {
	operatorID, campaignID, ok := campaignScope(c)
	if !ok {
		return
	}
	if err := h.svc.Pause(c.Request.Context(), operatorID, campaignID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "paused"})
}

// Resume handles POST /api/v1/campaigns/:id/resume
func (h *Handler) Resume(c *gin.Context) {
	operatorID, campaignID, ok := campaignScope(c)
	if !ok {
		return
	}
	if err := h.svc.Resume(c.Request.Context(), operatorID, campaignID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "resumed"})
}

// Stop handles POST /api/v1/campaigns/:id/stop
func (h *Handler) Stop(c *gin.Context) {
	operatorID, campaignID, ok := campaignScope(c)
	if !ok {
		return
	}
	if err := h.svc.Stop(c.Request.Context(), operatorID, campaignID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "stopped"})
}

// Stats handles GET /api/v1/campaigns/:id/stats
func (h *Handler) Stats(c *gin.Context) {
	operatorID, campaignID, ok := campaignScope(c)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), operatorID, campaignID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCampaignStatsResponse(stats))
}

// Responses handles GET /api/v1/campaigns/:id/responses
func (h *Handler) Responses(c *gin.Context) {
	operatorID, campaignID, ok := campaignScope(c)
	if !ok {
		return
	}
	responses, err := h.svc.Responses(c.Request.Context(), operatorID, campaignID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToDialedResponseItems(responses))
}

// campaignScope parses the campaign id and resolves the calling operator.
func campaignScope(c *gin.Context) (operatorID, campaignID uuid.UUID, ok bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, uuid.Nil, false
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, uuid.Nil, false
	}
	return identity.OperatorID(), id, true
}
