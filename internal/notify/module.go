// Package notify delivers campaign and call updates to the operator's
// Telegram chat and mails completion reports. It subscribes to domain
// events; the call path never waits on a notification channel.
package notify

import (
	"context"
	"sync"

	callsdomain "autodial_backend/internal/calls/domain"
	"autodial_backend/internal/campaigns/aggregator"
	"autodial_backend/internal/events"
	"autodial_backend/platform/logger"

	"github.com/google/uuid"
)

// ProgressSource exposes the live campaign state the notifier reads: the
// chat a campaign reports to and whether per-call messages are on.
// Implemented by the campaign aggregator.
type ProgressSource interface {
	Snapshot(campaignID uuid.UUID) (aggregator.CampaignSnapshot, bool)
}

// Module handles the notification event subscriptions.
type Module struct {
	telegram *TelegramClient
	report   *ReportSender
	progress ProgressSource
	log      *logger.Logger

	// A call can traverse several bridges; the operator hears about the
	// first one only.
	mu        sync.Mutex
	connected map[string]struct{}
}

// NewModule creates the notification module. telegram and report may be
// nil when their channel is unconfigured.
func NewModule(telegram *TelegramClient, report *ReportSender, progress ProgressSource, log *logger.Logger) *Module {
	return &Module{
		telegram:  telegram,
		report:    report,
		progress:  progress,
		log:       log,
		connected: make(map[string]struct{}),
	}
}

// RegisterHandlers subscribes to the call and campaign events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.CallStateChanged{}.EventName(), m)
	bus.Subscribe(events.CallDTMFReceived{}.EventName(), m)
	bus.Subscribe(events.CallFinished{}.EventName(), m)
	bus.Subscribe(events.CampaignStopped{}.EventName(), m)
	bus.Subscribe(events.CampaignCompleted{}.EventName(), m)

	m.log.Info("notify module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.CallStateChanged:
		return m.handleCallStateChanged(ctx, e)
	case events.CallDTMFReceived:
		return m.handleCallDTMF(ctx, e)
	case events.CallFinished:
		return m.handleCallFinished(ctx, e)
	case events.CampaignStopped:
		return m.handleCampaignStopped(ctx, e)
	case events.CampaignCompleted:
		return m.handleCampaignCompleted(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleCallStateChanged(ctx context.Context, e events.CallStateChanged) error {
	if e.ToStatus != string(callsdomain.StatusBridged) || e.CampaignID == nil {
		return nil
	}
	chatID, ok := m.perCallChat(*e.CampaignID)
	if !ok {
		return nil
	}
	if !m.markConnected(e.CallID) {
		return nil
	}
	return m.send(ctx, chatID, renderCallConnected(e))
}

func (m *Module) handleCallDTMF(ctx context.Context, e events.CallDTMFReceived) error {
	if e.CampaignID == nil {
		return nil
	}
	chatID, ok := m.perCallChat(*e.CampaignID)
	if !ok {
		return nil
	}
	return m.send(ctx, chatID, renderDTMF(e))
}

func (m *Module) handleCallFinished(ctx context.Context, e events.CallFinished) error {
	m.forgetConnected(e.CallID)
	if e.CampaignID == nil {
		return nil
	}
	chatID, ok := m.perCallChat(*e.CampaignID)
	if !ok {
		return nil
	}
	return m.send(ctx, chatID, renderCallFinished(e))
}

func (m *Module) handleCampaignStopped(ctx context.Context, e events.CampaignStopped) error {
	if m.telegram == nil || e.ChatID == 0 {
		return nil
	}
	return m.send(ctx, e.ChatID, renderCampaignStopped(e))
}

func (m *Module) handleCampaignCompleted(ctx context.Context, e events.CampaignCompleted) error {
	if m.telegram != nil && e.ChatID != 0 {
		if err := m.send(ctx, e.ChatID, renderCampaignCompleted(e)); err != nil {
			m.log.Warn("failed to send completion summary",
				"campaign_id", e.CampaignID.String(),
				"error", err.Error(),
			)
		}
	}

	if m.report == nil {
		return nil
	}
	if err := m.report.SendCampaignReport(ctx, e); err != nil {
		return err
	}
	m.log.Info("campaign report mailed", "campaign_id", e.CampaignID.String())
	return nil
}

// perCallChat returns the campaign's chat when per-call messages are
// enabled for it. Campaigns without live state report nothing.
func (m *Module) perCallChat(campaignID uuid.UUID) (int64, bool) {
	if m.telegram == nil || m.progress == nil {
		return 0, false
	}
	snap, ok := m.progress.Snapshot(campaignID)
	if !ok || !snap.IndividualNotifications || snap.ChatID == 0 {
		return 0, false
	}
	return snap.ChatID, true
}

func (m *Module) markConnected(callID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.connected[callID]; seen {
		return false
	}
	m.connected[callID] = struct{}{}
	return true
}

func (m *Module) forgetConnected(callID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connected, callID)
}

func (m *Module) send(ctx context.Context, chatID int64, text string) error {
	_, err := m.telegram.SendMessage(ctx, chatID, text)
	return err
}
