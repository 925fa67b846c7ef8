// Package service implements campaign management: intake, dispatch control
// and lifecycle settlement.
package service

import (
	"context"
	"fmt"
	"time"

	"autodial_backend/internal/campaigns/aggregator"
	"autodial_backend/internal/campaigns/domain"
	"autodial_backend/internal/campaigns/repository"
	"autodial_backend/internal/events"
	"autodial_backend/platform/apperr"
	"autodial_backend/platform/config"
	"autodial_backend/platform/logger"

	"github.com/google/uuid"
)

// QueuedCall describes one pre-created call record for intake. Call and
// tracking identifiers are minted by the call store.
type QueuedCall struct {
	Sequence  int
	Target    string
	CallerID  string
	Trunk     string
	RouteName string
}

// CallTallies aggregates persisted per-campaign call counts.
type CallTallies struct {
	Total     int
	Completed int
	Failed    int
	Active    int
	Responses int
}

// DialedResponse is one call whose callee pressed at least one key.
type DialedResponse struct {
	CallID   string
	Sequence int
	Target   string
	Digits   string
	Answered bool
}

// CallRecordStore is the slice of the call store the campaign service
// needs. Implemented by an adapter over the calls repository.
type CallRecordStore interface {
	CreateQueuedBatch(ctx context.Context, campaignID uuid.UUID, calls []QueuedCall) error
	TalliesByCampaign(ctx context.Context, campaignID uuid.UUID) (CallTallies, error)
	ResponsesByCampaign(ctx context.Context, campaignID uuid.UUID) ([]DialedResponse, error)
	CancelQueuedByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error)
}

// DispatchEnqueuer hands a campaign to the background dispatch queue.
type DispatchEnqueuer interface {
	EnqueueCampaignDispatch(ctx context.Context, campaignID uuid.UUID) error
}

// IntakeArchiver stores the raw uploaded number list. Optional.
type IntakeArchiver interface {
	ArchiveIntake(ctx context.Context, campaignID uuid.UUID, data []byte) (string, error)
}

// DialDefaults are the operator-level origination settings applied when a
// campaign does not override them.
type DialDefaults struct {
	CallerID                string
	Trunk                   string
	RouteName               string
	CallConcurrency         int
	IndividualNotifications bool
	ChatID                  int64
}

// DialDefaultsReader loads an operator's dial settings.
type DialDefaultsReader interface {
	DialDefaults(ctx context.Context, operatorID uuid.UUID) (DialDefaults, error)
}

// RouteChecker validates named dial routes and exposes their trunks.
type RouteChecker interface {
	Has(name string) bool
	TrunkFor(name string) string
}

// Service provides business logic for campaigns.
type Service struct {
	repo     *repository.Repository
	calls    CallRecordStore
	agg      *aggregator.Aggregator
	enqueuer DispatchEnqueuer
	archiver IntakeArchiver // optional, nil disables archival
	defaults DialDefaultsReader
	routes   RouteChecker
	bus      events.Bus
	cfg      config.CampaignConfig
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new campaign service.
func New(
	repo *repository.Repository,
	calls CallRecordStore,
	agg *aggregator.Aggregator,
	enqueuer DispatchEnqueuer,
	archiver IntakeArchiver,
	defaults DialDefaultsReader,
	routes RouteChecker,
	bus events.Bus,
	cfg config.CampaignConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		calls:    calls,
		agg:      agg,
		enqueuer: enqueuer,
		archiver: archiver,
		defaults: defaults,
		routes:   routes,
		bus:      bus,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// CreateInput describes a new campaign. Zero-valued fields fall back to the
// operator's dial settings, then to route and global defaults.
type CreateInput struct {
	Name               string
	NumberList         string
	RouteName          string
	CallerID           string
	Trunk              string
	CallConcurrency    int
	NotificationChatID int64
}

// CreateResult reports the created campaign and any rejected intake lines.
type CreateResult struct {
	Campaign repository.Campaign
	Accepted int
	Invalid  []InvalidNumber
}

// Create parses the number list, persists the campaign and pre-creates its
// queued call records in dial order.
func (s *Service) Create(ctx context.Context, operatorID uuid.UUID, input CreateInput) (CreateResult, error) {
	if err := domain.ValidateName(input.Name); err != nil {
		return CreateResult{}, apperr.Validation(err.Error())
	}

	intake, err := ParseNumberList(input.NumberList, s.cfg.GetMaxCampaignNumbers())
	if err != nil {
		return CreateResult{}, apperr.Validation(err.Error())
	}
	if len(intake.Numbers) == 0 {
		return CreateResult{}, apperr.Validation("number list contains no dialable numbers").
			WithDetails(intake.Invalid)
	}

	defaults, err := s.defaults.DialDefaults(ctx, operatorID)
	if err != nil {
		return CreateResult{}, err
	}

	routeName := firstNonEmpty(input.RouteName, defaults.RouteName)
	if routeName != "" && !s.routes.Has(routeName) {
		return CreateResult{}, apperr.Validation(fmt.Sprintf("unknown dial route %q", routeName))
	}

	concurrency := input.CallConcurrency
	if concurrency <= 0 {
		concurrency = defaults.CallConcurrency
	}
	if concurrency <= 0 {
		concurrency = s.cfg.GetDefaultCallConcurrency()
	}

	params := repository.CreateParams{
		Name:               input.Name,
		OwnerID:            operatorID,
		CallerID:           firstNonEmpty(input.CallerID, defaults.CallerID),
		Trunk:              firstNonEmpty(input.Trunk, s.routes.TrunkFor(routeName), defaults.Trunk),
		RouteName:          routeName,
		CallConcurrency:    concurrency,
		TotalNumbers:       len(intake.Numbers),
		NotificationChatID: pickChatID(input.NotificationChatID, defaults.ChatID),
	}

	campaign, err := s.repo.Create(ctx, params)
	if err != nil {
		return CreateResult{}, err
	}

	queued := make([]QueuedCall, len(intake.Numbers))
	for i, number := range intake.Numbers {
		queued[i] = QueuedCall{
			Sequence:  i + 1,
			Target:    number,
			CallerID:  campaign.CallerID,
			Trunk:     campaign.Trunk,
			RouteName: campaign.RouteName,
		}
	}
	if err := s.calls.CreateQueuedBatch(ctx, campaign.ID, queued); err != nil {
		return CreateResult{}, err
	}

	if s.archiver != nil {
		key, err := s.archiver.ArchiveIntake(ctx, campaign.ID, []byte(input.NumberList))
		if err != nil {
			s.log.Warn("failed to archive intake list",
				"campaign_id", campaign.ID.String(),
				"error", err.Error(),
			)
		} else if err := s.repo.SetIntakeObjectKey(ctx, campaign.ID, key); err != nil {
			s.log.Warn("failed to store intake object key",
				"campaign_id", campaign.ID.String(),
				"error", err.Error(),
			)
		}
	}

	s.log.CampaignEvent("created", campaign.ID.String())
	return CreateResult{Campaign: campaign, Accepted: len(intake.Numbers), Invalid: intake.Invalid}, nil
}

// Dispatch queues the campaign for background origination. The worker flips
// the status to active; dispatching twice is rejected there by the
// lifecycle guard.
func (s *Service) Dispatch(ctx context.Context, operatorID, campaignID uuid.UUID) error {
	campaign, err := s.owned(ctx, operatorID, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != domain.StatusPending {
		return apperr.Conflict(fmt.Sprintf("campaign is %s, only pending campaigns can be dispatched", campaign.Status))
	}

	if err := s.enqueuer.EnqueueCampaignDispatch(ctx, campaignID); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "failed to queue campaign dispatch", err)
	}
	s.log.CampaignEvent("dispatch_queued", campaignID.String())
	return nil
}

// Pause suspends origination between chunks. Calls already in flight keep
// running.
func (s *Service) Pause(ctx context.Context, operatorID, campaignID uuid.UUID) error {
	campaign, err := s.owned(ctx, operatorID, campaignID)
	if err != nil {
		return err
	}
	if !s.agg.Pause(campaignID) {
		return apperr.Conflict("campaign is not dispatching")
	}
	if err := s.repo.UpdateStatus(ctx, campaignID, []domain.Status{domain.StatusActive}, domain.StatusPaused); err != nil {
		return err
	}
	s.agg.PushProgress(ctx, campaignID)
	s.bus.Publish(ctx, events.CampaignPaused{
		BaseEvent:  events.NewBaseEvent(),
		CampaignID: campaignID,
		Name:       campaign.Name,
		OwnerID:    campaign.OwnerID,
	})
	s.log.CampaignEvent("paused", campaignID.String())
	return nil
}

// Resume lifts a pause.
func (s *Service) Resume(ctx context.Context, operatorID, campaignID uuid.UUID) error {
	campaign, err := s.owned(ctx, operatorID, campaignID)
	if err != nil {
		return err
	}
	if !s.agg.Resume(campaignID) {
		return apperr.Conflict("campaign is not dispatching")
	}
	if err := s.repo.UpdateStatus(ctx, campaignID, []domain.Status{domain.StatusPaused}, domain.StatusActive); err != nil {
		return err
	}
	s.agg.PushProgress(ctx, campaignID)
	s.bus.Publish(ctx, events.CampaignResumed{
		BaseEvent:  events.NewBaseEvent(),
		CampaignID: campaignID,
		Name:       campaign.Name,
		OwnerID:    campaign.OwnerID,
	})
	s.log.CampaignEvent("resumed", campaignID.String())
	return nil
}

// Stop cancels a campaign: live state is dropped so the dispatcher aborts
// at the next chunk boundary, still-queued records are cancelled, and the
// campaign settles as cancelled. In-flight calls run to their natural end.
func (s *Service) Stop(ctx context.Context, operatorID, campaignID uuid.UUID) error {
	campaign, err := s.owned(ctx, operatorID, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status.IsFinal() {
		return apperr.Conflict(fmt.Sprintf("campaign is already %s", campaign.Status))
	}

	s.agg.Remove(campaignID)

	cancelled, err := s.calls.CancelQueuedByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, campaignID,
		[]domain.Status{domain.StatusPending, domain.StatusActive, domain.StatusPaused},
		domain.StatusCancelled); err != nil {
		return err
	}

	tallies, err := s.calls.TalliesByCampaign(ctx, campaignID)
	if err == nil {
		if err := s.repo.SetProcessed(ctx, campaignID, tallies.Completed+tallies.Failed); err != nil {
			s.log.Warn("failed to settle processed count", "campaign_id", campaignID.String(), "error", err.Error())
		}
	}

	s.bus.Publish(ctx, events.CampaignStopped{
		BaseEvent:  events.NewBaseEvent(),
		CampaignID: campaignID,
		Name:       campaign.Name,
		OwnerID:    campaign.OwnerID,
		ChatID:     campaign.NotificationChatID,
		Dialed:     campaign.TotalNumbers - int(cancelled),
		Total:      campaign.TotalNumbers,
	})
	s.log.CampaignEvent("stopped", campaignID.String())
	return nil
}

// Rename updates the campaign name.
func (s *Service) Rename(ctx context.Context, operatorID, campaignID uuid.UUID, name string) error {
	if err := domain.ValidateName(name); err != nil {
		return apperr.Validation(err.Error())
	}
	if _, err := s.owned(ctx, operatorID, campaignID); err != nil {
		return err
	}
	return s.repo.Rename(ctx, campaignID, name)
}

// Get returns one campaign, scoped to its owner.
func (s *Service) Get(ctx context.Context, operatorID, campaignID uuid.UUID) (repository.Campaign, error) {
	return s.owned(ctx, operatorID, campaignID)
}

// List returns the operator's campaigns, newest first.
func (s *Service) List(ctx context.Context, operatorID uuid.UUID) ([]repository.Campaign, error) {
	return s.repo.ListByOwner(ctx, operatorID)
}

// Stats describes campaign progress. Live campaigns report the in-memory
// counters; settled campaigns fall back to the store.
type Stats struct {
	CampaignID uuid.UUID
	Status     domain.Status
	Live       bool
	Total      int
	Completed  int
	Active     int
	Failed     int
	Responses  int
	IsPaused   bool
	Render     string
}

// Stats returns current campaign progress.
func (s *Service) Stats(ctx context.Context, operatorID, campaignID uuid.UUID) (Stats, error) {
	campaign, err := s.owned(ctx, operatorID, campaignID)
	if err != nil {
		return Stats{}, err
	}

	if snap, ok := s.agg.Snapshot(campaignID); ok {
		return Stats{
			CampaignID: campaignID,
			Status:     campaign.Status,
			Live:       true,
			Total:      snap.Total,
			Completed:  snap.Completed,
			Active:     snap.Active,
			Failed:     snap.Failed,
			Responses:  snap.DTMFResponses,
			IsPaused:   snap.IsPaused,
			Render:     s.agg.Render(campaignID),
		}, nil
	}

	tallies, err := s.calls.TalliesByCampaign(ctx, campaignID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		CampaignID: campaignID,
		Status:     campaign.Status,
		Total:      campaign.TotalNumbers,
		Completed:  tallies.Completed,
		Active:     tallies.Active,
		Failed:     tallies.Failed,
		Responses:  tallies.Responses,
	}, nil
}

// Responses lists the campaign's calls that pressed at least one key.
func (s *Service) Responses(ctx context.Context, operatorID, campaignID uuid.UUID) ([]DialedResponse, error) {
	if _, err := s.owned(ctx, operatorID, campaignID); err != nil {
		return nil, err
	}
	return s.calls.ResponsesByCampaign(ctx, campaignID)
}

// SettleCompletion finalizes a campaign whose dispatch finished and whose
// calls all reached a terminal status. Wired to the aggregator's completion
// callback.
func (s *Service) SettleCompletion(snap aggregator.CampaignSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	campaignID := snap.CampaignID
	campaign, err := s.repo.GetByID(ctx, campaignID)
	if err != nil {
		s.log.Error("failed to load campaign for settlement", "campaign_id", campaignID.String(), "error", err.Error())
		return
	}

	tallies, err := s.calls.TalliesByCampaign(ctx, campaignID)
	if err != nil {
		s.log.Error("failed to tally campaign", "campaign_id", campaignID.String(), "error", err.Error())
		tallies = CallTallies{Total: snap.Total, Completed: snap.Completed, Failed: snap.Failed}
	}

	final := domain.FinalStatus(tallies.Completed)
	if err := s.repo.UpdateStatus(ctx, campaignID,
		[]domain.Status{domain.StatusActive, domain.StatusPaused}, final); err != nil {
		s.log.Warn("failed to settle campaign status", "campaign_id", campaignID.String(), "error", err.Error())
	}
	if err := s.repo.SetProcessed(ctx, campaignID, tallies.Completed+tallies.Failed); err != nil {
		s.log.Warn("failed to settle processed count", "campaign_id", campaignID.String(), "error", err.Error())
	}

	s.agg.PushProgress(ctx, campaignID)
	s.agg.Remove(campaignID)

	s.bus.Publish(ctx, events.CampaignCompleted{
		BaseEvent:  events.NewBaseEvent(),
		CampaignID: campaignID,
		Name:       campaign.Name,
		OwnerID:    campaign.OwnerID,
		ChatID:     snap.ChatID,
		Total:      tallies.Total,
		Completed:  tallies.Completed,
		Failed:     tallies.Failed,
		Responses:  s.responseHistogram(ctx, campaignID),
		StartedAt:  snap.StartTime,
		FinishedAt: s.now(),
	})
	s.log.CampaignEvent("completed", campaignID.String())
}

// responseHistogram counts pressed digits across the campaign.
func (s *Service) responseHistogram(ctx context.Context, campaignID uuid.UUID) map[string]int {
	responses, err := s.calls.ResponsesByCampaign(ctx, campaignID)
	if err != nil {
		s.log.Warn("failed to load responses for report", "campaign_id", campaignID.String(), "error", err.Error())
		return nil
	}
	if len(responses) == 0 {
		return nil
	}
	hist := make(map[string]int)
	for _, r := range responses {
		for _, digit := range r.Digits {
			hist[string(digit)]++
		}
	}
	return hist
}

// owned loads a campaign and enforces ownership. Foreign campaigns read as
// not found so ids cannot be probed.
func (s *Service) owned(ctx context.Context, operatorID, campaignID uuid.UUID) (repository.Campaign, error) {
	campaign, err := s.repo.GetByID(ctx, campaignID)
	if err != nil {
		return repository.Campaign{}, err
	}
	if campaign.OwnerID != operatorID {
		return repository.Campaign{}, apperr.NotFound("campaign not found")
	}
	return campaign, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func pickChatID(override, fallback int64) int64 {
	if override != 0 {
		return override
	}
	return fallback
}
