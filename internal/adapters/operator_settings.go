package adapters

import (
	"context"

	campaignsservice "autodial_backend/internal/campaigns/service"
	"autodial_backend/internal/dispatch"
	"autodial_backend/internal/operators/repository"
	"autodial_backend/platform/apperr"

	"github.com/google/uuid"
)

// OperatorSettingsAdapter reads per-operator dial settings for campaign
// creation and for the dispatch worker's notification toggle. It implements
// campaigns/service.DialDefaultsReader and dispatch.OperatorSettingsReader.
type OperatorSettingsAdapter struct {
	repo *repository.Repository
}

func NewOperatorSettingsAdapter(repo *repository.Repository) *OperatorSettingsAdapter {
	return &OperatorSettingsAdapter{repo: repo}
}

func (a *OperatorSettingsAdapter) DialDefaults(ctx context.Context, operatorID uuid.UUID) (campaignsservice.DialDefaults, error) {
	op, err := a.repo.GetByID(ctx, operatorID)
	if err != nil {
		// A token can outlive its operator row; campaigns then run on the
		// global defaults instead of failing creation.
		if apperr.Is(err, apperr.KindNotFound) {
			return campaignsservice.DialDefaults{}, nil
		}
		return campaignsservice.DialDefaults{}, err
	}
	settings, err := a.repo.GetSettings(ctx, operatorID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return campaignsservice.DialDefaults{}, err
	}
	return campaignsservice.DialDefaults{
		CallerID:                settings.CallerID,
		Trunk:                   settings.Trunk,
		RouteName:               settings.RouteName,
		CallConcurrency:         settings.CallConcurrency,
		IndividualNotifications: settings.IndividualNotifications,
		ChatID:                  op.ChatID,
	}, nil
}

func (a *OperatorSettingsAdapter) IndividualNotifications(ctx context.Context, operatorID uuid.UUID) (bool, error) {
	settings, err := a.repo.GetSettings(ctx, operatorID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return settings.IndividualNotifications, nil
}

var _ campaignsservice.DialDefaultsReader = (*OperatorSettingsAdapter)(nil)
var _ dispatch.OperatorSettingsReader = (*OperatorSettingsAdapter)(nil)
