// Package handler exposes the operator auth and settings endpoints.
package handler

import (
	"net/http"

	"autodial_backend/internal/operators/service"
	"autodial_backend/internal/operators/transport"
	"autodial_backend/platform/httpkit"
	"autodial_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for operators.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new operators handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterAuthRoutes registers the unauthenticated token exchange route.
func (h *Handler) RegisterAuthRoutes(rg *gin.RouterGroup) {
	rg.POST("/token", h.ExchangeToken)
}

// RegisterRoutes registers the authenticated operator routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
	rg.PUT("/me/settings", h.UpdateSettings)
	rg.POST("/me/rotate-key", h.RotateKey)
}

// ExchangeToken handles POST /api/v1/auth/token
func (h *Handler) ExchangeToken(c *gin.Context) {
	var req transport.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	token, err := h.svc.ExchangeAPIKey(c.Request.Context(), req.Name, req.APIKey)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   token.ExpiresIn,
	})
}

// Me handles GET /api/v1/operators/me
func (h *Handler) Me(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	op, settings, err := h.svc.Get(c.Request.Context(), identity.OperatorID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOperatorResponse(op, settings))
}

// UpdateSettings handles PUT /api/v1/operators/me/settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req transport.UpdateSettingsRequest
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

	op, settings, err := h.svc.UpdateSettings(c.Request.Context(), identity.OperatorID(), service.UpdateSettingsInput{
		CallerID:                req.CallerID,
		Trunk:                   req.Trunk,
		RouteName:               req.RouteName,
		CallConcurrency:         req.CallConcurrency,
		NotificationChatID:      req.NotificationChatID,
		IndividualNotifications: req.IndividualNotifications,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOperatorResponse(op, settings))
}

// RotateKey handles POST /api/v1/operators/me/rotate-key
func (h *Handler) RotateKey(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	apiKey, err := h.svc.RotateAPIKey(c.Request.Context(), identity.OperatorID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RotatedKeyResponse{APIKey: apiKey})
}
