package dispatch

import (
	"context"
	"fmt"

	callsrepo "autodial_backend/internal/calls/repository"
	"autodial_backend/internal/campaigns/aggregator"
	campaignsdomain "autodial_backend/internal/campaigns/domain"
	campaignsrepo "autodial_backend/internal/campaigns/repository"
	"autodial_backend/internal/events"
	"autodial_backend/platform/apperr"
	"autodial_backend/platform/config"
	"autodial_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageSender posts the initial campaign progress message. Implemented by
// the Telegram client; nil disables progress messages.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
}

// OperatorSettingsReader reports whether an operator wants one message per
// finished call on top of the progress edits. nil means never.
type OperatorSettingsReader interface {
	IndividualNotifications(ctx context.Context, operatorID uuid.UUID) (bool, error)
}

// Deps are the collaborators the dispatch worker needs beyond its stores.
type Deps struct {
	Aggregator *aggregator.Aggregator
	Originator Originator
	Notifier   MessageSender          // optional
	Settings   OperatorSettingsReader // optional
	Bus        events.Bus
	Campaign   config.CampaignConfig
	Log        *logger.Logger
}

// Worker consumes campaign dispatch jobs and runs them to completion.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	campaigns  *campaignsrepo.Repository
	calls      *callsrepo.Repository
	dispatcher *Dispatcher
	agg        *aggregator.Aggregator
	notifier   MessageSender
	settings   OperatorSettingsReader
	bus        events.Bus
	log        *logger.Logger
}

func NewWorker(cfg config.DispatchConfig, pool *pgxpool.Pool, deps Deps) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetDispatchQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetWorkerConcurrency()
	if concurrency < 1 {
		concurrency = 2
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	calls := callsrepo.New(pool)
	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		campaigns:  campaignsrepo.New(pool),
		calls:      calls,
		dispatcher: NewDispatcher(calls, deps.Aggregator, deps.Originator, deps.Campaign, deps.Log),
		agg:        deps.Aggregator,
		notifier:   deps.Notifier,
		settings:   deps.Settings,
		bus:        deps.Bus,
		log:        deps.Log,
	}

	mux.HandleFunc(TaskCampaignDispatch, w.handleCampaignDispatch)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("dispatch worker stopped", "error", err)
	}
}

func (w *Worker) handleCampaignDispatch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCampaignDispatchPayload(task)
	if err != nil {
		return err
	}
	campaignID, err := uuid.Parse(payload.CampaignID)
	if err != nil {
		return err
	}

	campaign, err := w.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			w.log.Warn("dispatch job for unknown campaign", "campaign_id", payload.CampaignID)
			return nil
		}
		return err
	}

	// The pending->active flip is the claim on the campaign. A second
	// delivery of the same job loses the race here and drops out.
	err = w.campaigns.UpdateStatus(ctx, campaignID,
		[]campaignsdomain.Status{campaignsdomain.StatusPending}, campaignsdomain.StatusActive)
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			w.log.Warn("campaign already claimed, dropping dispatch job",
				"campaign_id", campaignID.String(),
				"status", string(campaign.Status),
			)
			return nil
		}
		return err
	}

	records, err := w.calls.ListQueuedByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		w.log.Warn("campaign has no queued records", "campaign_id", campaignID.String())
		return w.campaigns.UpdateStatus(ctx, campaignID,
			[]campaignsdomain.Status{campaignsdomain.StatusActive}, campaignsdomain.StatusFailed)
	}

	chatID, messageID := w.announce(ctx, campaign)

	w.agg.Launch(aggregator.LaunchParams{
		CampaignID:              campaignID,
		Name:                    campaign.Name,
		Total:                   campaign.TotalNumbers,
		ChatID:                  chatID,
		MessageID:               messageID,
		IndividualNotifications: w.individualNotifications(ctx, campaign.OwnerID),
	})

	w.bus.Publish(ctx, events.CampaignDispatchStarted{
		BaseEvent:    events.NewBaseEvent(),
		CampaignID:   campaignID,
		Name:         campaign.Name,
		OwnerID:      campaign.OwnerID,
		ChatID:       chatID,
		TotalNumbers: campaign.TotalNumbers,
	})
	w.log.CampaignEvent("dispatch_started", campaignID.String())

	result := w.dispatcher.Run(ctx, campaignID, campaign.CallConcurrency, records)
	if result.Aborted {
		// Stopped by the operator (live state gone, records already
		// cancelled) or shut down mid-run; either way this job is done.
		w.log.CampaignEvent("dispatch_aborted", campaignID.String())
		return nil
	}

	w.agg.DispatchFinished(campaignID)
	w.log.CampaignEvent("dispatch_finished", campaignID.String())
	w.log.Info("campaign dispatch finished",
		"campaign_id", campaignID.String(),
		"originated", result.Originated,
		"rejected", result.Rejected,
		"skipped", result.Skipped,
	)
	return nil
}

// announce posts the initial progress message and remembers its id so the
// aggregator can edit it for the rest of the run.
func (w *Worker) announce(ctx context.Context, campaign campaignsrepo.Campaign) (chatID, messageID int64) {
	chatID = campaign.NotificationChatID
	if w.notifier == nil || chatID == 0 {
		return 0, 0
	}

	text := fmt.Sprintf("🚀 Starting campaign *%s* (%d numbers)", campaign.Name, campaign.TotalNumbers)
	messageID, err := w.notifier.SendMessage(ctx, chatID, text)
	if err != nil {
		w.log.Warn("failed to announce campaign start",
			"campaign_id", campaign.ID.String(),
			"error", err.Error(),
		)
		return 0, 0
	}

	if err := w.campaigns.SetNotificationMessage(ctx, campaign.ID, chatID, messageID); err != nil {
		w.log.Warn("failed to store progress message id",
			"campaign_id", campaign.ID.String(),
			"error", err.Error(),
		)
	}
	return chatID, messageID
}

func (w *Worker) individualNotifications(ctx context.Context, operatorID uuid.UUID) bool {
	if w.settings == nil {
		return false
	}
	enabled, err := w.settings.IndividualNotifications(ctx, operatorID)
	if err != nil {
		w.log.Warn("failed to load notification preference", "operator_id", operatorID.String(), "error", err.Error())
		return false
	}
	return enabled
}
