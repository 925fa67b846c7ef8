package adapters

import (
	"context"
	"fmt"
	"time"

	"autodial_backend/internal/calls/domain"
	"autodial_backend/internal/calls/repository"
	campaignsservice "autodial_backend/internal/campaigns/service"

	"github.com/google/uuid"
)

// CampaignCallStoreAdapter exposes the call record store to the campaign
// domain. It implements the campaigns/service.CallRecordStore interface and
// mints call and tracking identifiers during intake.
type CampaignCallStoreAdapter struct {
	repo *repository.Repository
}

func NewCampaignCallStoreAdapter(repo *repository.Repository) *CampaignCallStoreAdapter {
	return &CampaignCallStoreAdapter{repo: repo}
}

func (a *CampaignCallStoreAdapter) CreateQueuedBatch(ctx context.Context, campaignID uuid.UUID, calls []campaignsservice.QueuedCall) error {
	now := time.Now()
	batch := make([]repository.CreateQueuedParams, len(calls))
	for i, c := range calls {
		batch[i] = repository.CreateQueuedParams{
			CallID:         domain.NewCallID(campaignID, c.Sequence, now),
			TrackingID:     domain.NewTrackingID(c.Sequence),
			CampaignID:     campaignID,
			SequenceNumber: c.Sequence,
			TargetNumber:   c.Target,
			CallerID:       c.CallerID,
			Trunk:          c.Trunk,
			RouteName:      c.RouteName,
		}
	}

	inserted, err := a.repo.CreateQueuedBatch(ctx, batch)
	if err != nil {
		return err
	}
	if inserted != int64(len(batch)) {
		return fmt.Errorf("queued %d of %d call records", inserted, len(batch))
	}
	return nil
}

func (a *CampaignCallStoreAdapter) TalliesByCampaign(ctx context.Context, campaignID uuid.UUID) (campaignsservice.CallTallies, error) {
	tallies, err := a.repo.TalliesByCampaign(ctx, campaignID)
	if err != nil {
		return campaignsservice.CallTallies{}, err
	}
	return campaignsservice.CallTallies{
		Total:     tallies.Total,
		Completed: tallies.Completed,
		Failed:    tallies.Failed,
		Active:    tallies.Active,
		Responses: tallies.Responses,
	}, nil
}

func (a *CampaignCallStoreAdapter) ResponsesByCampaign(ctx context.Context, campaignID uuid.UUID) ([]campaignsservice.DialedResponse, error) {
	records, err := a.repo.ListResponsesByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	out := make([]campaignsservice.DialedResponse, len(records))
	for i, rec := range records {
		answered, _ := rec.Metadata["call_answered"].(bool)
		out[i] = campaignsservice.DialedResponse{
			CallID:   rec.CallID,
			Sequence: rec.SequenceNumber,
			Target:   rec.TargetNumber,
			Digits:   rec.DTMFDigits,
			Answered: answered,
		}
	}
	return out, nil
}

func (a *CampaignCallStoreAdapter) CancelQueuedByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	return a.repo.CancelQueuedByCampaign(ctx, campaignID)
}

var _ campaignsservice.CallRecordStore = (*CampaignCallStoreAdapter)(nil)
