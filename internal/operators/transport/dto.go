// Package transport defines the operator API wire types.
package transport

import (
	"time"

	"autodial_backend/internal/operators/repository"
)

// TokenRequest exchanges an operator name and API key for a bearer token.
type TokenRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=64"`
	APIKey string `json:"apiKey" validate:"required"`
}

// TokenResponse carries the minted access token.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// OperatorResponse is the operator account with its dial settings.
type OperatorResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Settings  SettingsResponse `json:"settings"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// SettingsResponse holds the per-operator dial defaults.
type SettingsResponse struct {
	CallerID                string `json:"callerId"`
	Trunk                   string `json:"trunk"`
	RouteName               string `json:"routeName"`
	CallConcurrency         int    `json:"callConcurrency"`
	NotificationChatID      int64  `json:"notificationChatId"`
	IndividualNotifications bool   `json:"individualNotifications"`
}

// UpdateSettingsRequest is a partial settings update; omitted fields are
// left unchanged.
type UpdateSettingsRequest struct {
	CallerID                *string `json:"callerId" validate:"omitempty,max=32"`
	Trunk                   *string `json:"trunk" validate:"omitempty,max=64"`
	RouteName               *string `json:"routeName" validate:"omitempty,max=64"`
	CallConcurrency         *int    `json:"callConcurrency" validate:"omitempty,min=1,max=50"`
	NotificationChatID      *int64  `json:"notificationChatId"`
	IndividualNotifications *bool   `json:"individualNotifications"`
}

// RotatedKeyResponse returns a fresh API key. The plaintext is shown only in
// this response; the server keeps the hash.
type RotatedKeyResponse struct {
	APIKey string `json:"apiKey"`
}

// ToOperatorResponse converts an operator record to its API shape. The API
// key hash never leaves the server.
func ToOperatorResponse(o repository.Operator, s repository.Settings) OperatorResponse {
	return OperatorResponse{
		ID:   o.ID.String(),
		Name: o.Name,
		Settings: SettingsResponse{
			CallerID:                s.CallerID,
			Trunk:                   s.Trunk,
			RouteName:               s.RouteName,
			CallConcurrency:         s.CallConcurrency,
			NotificationChatID:      o.ChatID,
			IndividualNotifications: s.IndividualNotifications,
		},
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}
