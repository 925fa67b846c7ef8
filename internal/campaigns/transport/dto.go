package transport

import (
	"time"

	"autodial_backend/internal/campaigns/repository"
	"autodial_backend/internal/campaigns/service"

	"github.com/google/uuid"
)

type CreateCampaignRequest struct {
	Name               string `json:"name" validate:"required,min=1,max=120"`
	Numbers            string `json:"numbers" validate:"required"`
	RouteName          string `json:"routeName,omitempty" validate:"omitempty,max=64"`
	CallerID           string `json:"callerId,omitempty" validate:"omitempty,max=32"`
	Trunk              string `json:"trunk,omitempty" validate:"omitempty,max=64"`
	CallConcurrency    int    `json:"callConcurrency,omitempty" validate:"omitempty,min=1,max=50"`
	NotificationChatID int64  `json:"notificationChatId,omitempty"`
}

type RenameCampaignRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

type CampaignResponse struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Status           string     `json:"status"`
	CallerID         string     `json:"callerId,omitempty"`
	Trunk            string     `json:"trunk,omitempty"`
	RouteName        string     `json:"routeName,omitempty"`
	CallConcurrency  int        `json:"callConcurrency"`
	TotalNumbers     int        `json:"totalNumbers"`
	ProcessedNumbers int        `json:"processedNumbers"`
	CreatedAt        time.Time  `json:"createdAt"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

func ToCampaignResponse(c repository.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:               c.ID,
		Name:             c.Name,
		Status:           string(c.Status),
		CallerID:         c.CallerID,
		Trunk:            c.Trunk,
		RouteName:        c.RouteName,
		CallConcurrency:  c.CallConcurrency,
		TotalNumbers:     c.TotalNumbers,
		ProcessedNumbers: c.ProcessedNumbers,
		CreatedAt:        c.CreatedAt,
		StartedAt:        c.StartedAt,
		CompletedAt:      c.CompletedAt,
	}
}

func ToCampaignResponses(campaigns []repository.Campaign) []CampaignResponse {
	out := make([]CampaignResponse, len(campaigns))
	for i, c := range campaigns {
		out[i] = ToCampaignResponse(c)
	}
	return out
}

type CreateCampaignResponse struct {
	Campaign CampaignResponse        `json:"campaign"`
	Accepted int                     `json:"accepted"`
	Invalid  []service.InvalidNumber `json:"invalid,omitempty"`
}

type CampaignStatsResponse struct {
	CampaignID uuid.UUID `json:"campaignId"`
	Status     string    `json:"status"`
	Live       bool      `json:"live"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Active     int       `json:"active"`
	Failed     int       `json:"failed"`
	Responses  int       `json:"responses"`
	IsPaused   bool      `json:"isPaused"`
	Progress   string    `json:"progress,omitempty"`
}

func ToCampaignStatsResponse(s service.Stats) CampaignStatsResponse {
	return CampaignStatsResponse{
		CampaignID: s.CampaignID,
		Status:     string(s.Status),
		Live:       s.Live,
		Total:      s.Total,
		Completed:  s.Completed,
		Active:     s.Active,
		Failed:     s.Failed,
		Responses:  s.Responses,
		IsPaused:   s.IsPaused,
		Progress:   s.Render,
	}
}

type DialedResponseItem struct {
	CallID   string `json:"callId"`
	Sequence int    `json:"sequence"`
	Target   string `json:"target"`
	Digits   string `json:"digits"`
	Answered bool   `json:"answered"`
}

func ToDialedResponseItems(responses []service.DialedResponse) []DialedResponseItem {
	out := make([]DialedResponseItem, len(responses))
	for i, r := range responses {
		out[i] = DialedResponseItem{
			CallID:   r.CallID,
			Sequence: r.Sequence,
			Target:   r.Target,
			Digits:   r.Digits,
			Answered: r.Answered,
		}
	}
	return out
}
