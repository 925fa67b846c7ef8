package adapters

import (
	"autodial_backend/internal/calls/domain"
	callsservice "autodial_backend/internal/calls/service"
	"autodial_backend/internal/campaigns/aggregator"

	"github.com/google/uuid"
)

// CampaignTrackerAdapter feeds call outcomes from the event engine into the
// campaign aggregator. It implements the calls/service.CampaignTracker
// interface.
type CampaignTrackerAdapter struct {
	agg *aggregator.Aggregator
}

func NewCampaignTrackerAdapter(agg *aggregator.Aggregator) *CampaignTrackerAdapter {
	return &CampaignTrackerAdapter{agg: agg}
}

func (a *CampaignTrackerAdapter) CallCompleted(campaignID uuid.UUID, outcome domain.Outcome) {
	a.agg.CallFinished(campaignID, outcome == domain.OutcomeAnswered)
}

func (a *CampaignTrackerAdapter) DTMFResponse(campaignID uuid.UUID) {
	a.agg.DTMFResponse(campaignID)
}

var _ callsservice.CampaignTracker = (*CampaignTrackerAdapter)(nil)
