// Package aggregator keeps the live in-memory campaign counters and renders
// the operator's progress message.
package aggregator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"autodial_backend/platform/logger"

	"github.com/google/uuid"
)

// ProgressNotifier edits the operator's live progress message. Implemented
// by the Telegram client; a nil notifier disables pushes entirely.
type ProgressNotifier interface {
	EditMessage(ctx context.Context, chatID, messageID int64, text string) error
}

// CampaignSnapshot is a point-in-time copy of one campaign's live counters.
type CampaignSnapshot struct {
	CampaignID              uuid.UUID
	Name                    string
	Total                   int
	Completed               int
	Active                  int
	Failed                  int
	DTMFResponses           int
	IsPaused                bool
	IndividualNotifications bool
	StartTime               time.Time
	ChatID                  int64
	MessageID               int64
}

// Processed returns how many calls have reached a terminal status.
func (s CampaignSnapshot) Processed() int {
	return s.Completed + s.Failed
}

// Percent returns the campaign's completion percentage.
func (s CampaignSnapshot) Percent() int {
	if s.Total == 0 {
		return 0
	}
	return s.Processed() * 100 / s.Total
}

// campaignState tracks one launched campaign. All fields are guarded by the
// aggregator's mutex.
type campaignState struct {
	snapshot     CampaignSnapshot
	dispatchDone bool
	completed    bool // completion already fired
	lastPush     time.Time
	pushing      bool
}

// LaunchParams seeds the live state for a dispatching campaign.
type LaunchParams struct {
	CampaignID              uuid.UUID
	Name                    string
	Total                   int
	ChatID                  int64
	MessageID               int64
	IndividualNotifications bool
}

// Aggregator keeps the live per-campaign counters the engine and dispatcher
// report into. Calls against campaigns it does not know are silent no-ops:
// a stopped campaign's in-flight events must land somewhere harmless.
type Aggregator struct {
	mu     sync.Mutex
	states map[uuid.UUID]*campaignState

	notifier     ProgressNotifier
	log          *logger.Logger
	editInterval time.Duration
	now          func() time.Time

	// onComplete runs (on its own goroutine) when a campaign's dispatch has
	// finished and every call reached a terminal status.
	onComplete func(CampaignSnapshot)
}

// NewAggregator creates the campaign registry. notifier may be nil.
func NewAggregator(notifier ProgressNotifier, editInterval time.Duration, log *logger.Logger) *Aggregator {
	if editInterval <= 0 {
		editInterval = 2 * time.Second
	}
	return &Aggregator{
		states:       make(map[uuid.UUID]*campaignState),
		notifier:     notifier,
		log:          log,
		editInterval: editInterval,
		now:          time.Now,
	}
}

// OnComplete registers the completion callback. Must be set before the
// first Launch.
func (a *Aggregator) OnComplete(fn func(CampaignSnapshot)) {
	a.onComplete = fn
}

// Launch registers live state for a campaign about to dispatch.
func (a *Aggregator) Launch(params LaunchParams) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states[params.CampaignID] = &campaignState{
		snapshot: CampaignSnapshot{
			CampaignID:              params.CampaignID,
			Name:                    params.Name,
			Total:                   params.Total,
			ChatID:                  params.ChatID,
			MessageID:               params.MessageID,
			IndividualNotifications: params.IndividualNotifications,
			StartTime:               a.now(),
		},
	}
}

// Remove drops a campaign's live state. Events still in flight for it
// become no-ops.
func (a *Aggregator) Remove(campaignID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.states, campaignID)
}

// Alive reports whether the campaign still has live state.
func (a *Aggregator) Alive(campaignID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.states[campaignID]
	return ok
}

// CallStarted counts a call the PBX accepted for origination.
func (a *Aggregator) CallStarted(campaignID uuid.UUID) {
	a.update(campaignID, false, func(s *campaignState) {
		s.snapshot.Active++
	})
}

// CallFinished moves one call from active to completed or failed. Paired
// with exactly one CallStarted; the clamp guards against double counting if
// a rogue event slips through.
func (a *Aggregator) CallFinished(campaignID uuid.UUID, answered bool) {
	a.update(campaignID, false, func(s *campaignState) {
		if s.snapshot.Active > 0 {
			s.snapshot.Active--
		}
		if answered {
			s.snapshot.Completed++
		} else {
			s.snapshot.Failed++
		}
	})
}

// OriginateFailed counts a call the PBX rejected synchronously. The call
// never became active, so only the failure counter moves.
func (a *Aggregator) OriginateFailed(campaignID uuid.UUID) {
	a.update(campaignID, false, func(s *campaignState) {
		s.snapshot.Failed++
	})
}

// DTMFResponse counts one pressed digit.
func (a *Aggregator) DTMFResponse(campaignID uuid.UUID) {
	a.update(campaignID, false, func(s *campaignState) {
		s.snapshot.DTMFResponses++
	})
}

// Pause marks the campaign paused. The dispatcher polls IsPaused between
// chunks. Returns false when the campaign has no live state.
func (a *Aggregator) Pause(campaignID uuid.UUID) bool {
	return a.update(campaignID, true, func(s *campaignState) {
		s.snapshot.IsPaused = true
	})
}

// Resume clears the paused flag.
func (a *Aggregator) Resume(campaignID uuid.UUID) bool {
	return a.update(campaignID, true, func(s *campaignState) {
		s.snapshot.IsPaused = false
	})
}

// IsPaused reports the campaign's pause flag.
func (a *Aggregator) IsPaused(campaignID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.states[campaignID]; ok {
		return s.snapshot.IsPaused
	}
	return false
}

// IndividualNotifications reports whether per-call pushes are enabled for
// the campaign.
func (a *Aggregator) IndividualNotifications(campaignID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.states[campaignID]; ok {
		return s.snapshot.IndividualNotifications
	}
	return false
}

// SetIndividualNotifications toggles per-call pushes for a live campaign.
func (a *Aggregator) SetIndividualNotifications(campaignID uuid.UUID, enabled bool) bool {
	return a.update(campaignID, false, func(s *campaignState) {
		s.snapshot.IndividualNotifications = enabled
	})
}

// DispatchFinished marks that the dispatcher has originated (or errored)
// every record. The campaign completes once the in-flight calls drain.
func (a *Aggregator) DispatchFinished(campaignID uuid.UUID) {
	a.update(campaignID, true, func(s *campaignState) {
		s.dispatchDone = true
	})
}

// Snapshot returns a copy of the campaign's live counters.
func (a *Aggregator) Snapshot(campaignID uuid.UUID) (CampaignSnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.states[campaignID]; ok {
		return s.snapshot, true
	}
	return CampaignSnapshot{}, false
}

// PushProgress renders and edits the progress message immediately,
// bypassing the debounce. The dispatcher calls it at chunk boundaries.
func (a *Aggregator) PushProgress(ctx context.Context, campaignID uuid.UUID) {
	a.mu.Lock()
	s, ok := a.states[campaignID]
	if !ok {
		a.mu.Unlock()
		return
	}
	snap := s.snapshot
	s.lastPush = a.now()
	a.mu.Unlock()

	a.push(ctx, snap)
}

// update applies a mutation and schedules a debounced (or forced) progress
// push. Returns false when the campaign has no live state.
func (a *Aggregator) update(campaignID uuid.UUID, force bool, mutate func(*campaignState)) bool {
	a.mu.Lock()
	s, ok := a.states[campaignID]
	if !ok {
		a.mu.Unlock()
		return false
	}
	mutate(s)

	finished := s.dispatchDone && !s.completed && s.snapshot.Processed() >= s.snapshot.Total
	if finished {
		s.completed = true
	}

	var snap CampaignSnapshot
	doPush := false
	now := a.now()
	if force || finished || now.Sub(s.lastPush) >= a.editInterval {
		if !s.pushing {
			s.pushing = true
			s.lastPush = now
			snap = s.snapshot
			doPush = true
		}
	}
	a.mu.Unlock()

	if doPush {
		go func() {
			a.push(context.Background(), snap)
			a.mu.Lock()
			if st, ok := a.states[campaignID]; ok {
				st.pushing = false
			}
			a.mu.Unlock()
		}()
	}

	if finished && a.onComplete != nil {
		go a.onComplete(a.mustSnapshot(campaignID))
	}
	return true
}

func (a *Aggregator) mustSnapshot(campaignID uuid.UUID) CampaignSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.states[campaignID]; ok {
		return s.snapshot
	}
	return CampaignSnapshot{CampaignID: campaignID}
}

// push edits the progress message. Failures are logged and swallowed: a
// broken notification channel must never affect call processing.
func (a *Aggregator) push(ctx context.Context, snap CampaignSnapshot) {
	if a.notifier == nil || snap.ChatID == 0 || snap.MessageID == 0 {
		return
	}
	text := a.render(snap)
	if err := a.notifier.EditMessage(ctx, snap.ChatID, snap.MessageID, text); err != nil {
		a.log.Warn("failed to push campaign progress",
			"campaign_id", snap.CampaignID.String(),
			"error", err.Error(),
		)
	}
}

// Render returns the progress message for a campaign, or "" when it has no
// live state.
func (a *Aggregator) Render(campaignID uuid.UUID) string {
	snap, ok := a.Snapshot(campaignID)
	if !ok {
		return ""
	}
	return a.render(snap)
}

func (a *Aggregator) render(snap CampaignSnapshot) string {
	elapsed := a.now().Sub(snap.StartTime)
	state := "🚀 Running"
	if snap.IsPaused {
		state = "⏸ Paused"
	}

	return fmt.Sprintf(
		"🤖 *%s*\n\n"+
			"📊 *Progress* %d%%\n"+
			"%s (%d/%d)\n\n"+
			"📞 *Call Stats*\n"+
			"├─ ✅ Completed: %d\n"+
			"├─ 🔄 Active: %d\n"+
			"├─ ❌ Failed: %d\n"+
			"└─ 🔔 DTMF Responses: %d\n\n"+
			"⏱ *Duration:* %s\n"+
			"⚡ *Status:* %s",
		snap.Name,
		snap.Percent(),
		ProgressBar(snap.Processed(), snap.Total, 10), snap.Processed(), snap.Total,
		snap.Completed,
		snap.Active,
		snap.Failed,
		snap.DTMFResponses,
		formatElapsed(elapsed),
		state,
	)
}

// ProgressBar renders a fixed-width glyph bar.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		return strings.Repeat("▱", width)
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}
