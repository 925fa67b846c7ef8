// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"autodial_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Call Domain Events
// =============================================================================

// CallStateChanged is published on every accepted call state transition.
// Consumers must tolerate out-of-order delivery across different calls;
// transitions for a single call are published in order.
type CallStateChanged struct {
	BaseEvent
	CallID       string     `json:"callId"`
	CampaignID   *uuid.UUID `json:"campaignId,omitempty"`
	UniqueID     string     `json:"uniqueId,omitempty"`
	TargetNumber string     `json:"targetNumber"`
	FromStatus   string     `json:"fromStatus"`
	ToStatus     string     `json:"toStatus"`
}

func (e CallStateChanged) EventName() string { return "calls.state.changed" }

// CallDTMFReceived is published when a callee presses a key during the IVR.
type CallDTMFReceived struct {
	BaseEvent
	CallID         string     `json:"callId"`
	CampaignID     *uuid.UUID `json:"campaignId,omitempty"`
	TargetNumber   string     `json:"targetNumber"`
	SequenceNumber int        `json:"sequenceNumber"`
	Digit          string     `json:"digit"`
}

func (e CallDTMFReceived) EventName() string { return "calls.dtmf.received" }

// CallFinished is published when a call reaches a terminal status.
type CallFinished struct {
	BaseEvent
	CallID          string     `json:"callId"`
	CampaignID      *uuid.UUID `json:"campaignId,omitempty"`
	TargetNumber    string     `json:"targetNumber"`
	SequenceNumber  int        `json:"sequenceNumber"`
	Status          string     `json:"status"`
	Answered        bool       `json:"answered"`
	HangupCause     int        `json:"hangupCause"`
	DurationSeconds float64    `json:"durationSeconds"`
}

func (e CallFinished) EventName() string { return "calls.finished" }

// =============================================================================
// Campaign Domain Events
// =============================================================================

// CampaignDispatchStarted is published when the dispatch worker picks up a
// campaign and begins originating calls.
type CampaignDispatchStarted struct {
	BaseEvent
	CampaignID   uuid.UUID `json:"campaignId"`
	Name         string    `json:"name"`
	OwnerID      uuid.UUID `json:"ownerId"`
	ChatID       int64     `json:"chatId,omitempty"`
	TotalNumbers int       `json:"totalNumbers"`
}

func (e CampaignDispatchStarted) EventName() string { return "campaigns.dispatch.started" }

// CampaignPaused is published when an operator pauses an active campaign.
type CampaignPaused struct {
	BaseEvent
	CampaignID uuid.UUID `json:"campaignId"`
	Name       string    `json:"name"`
	OwnerID    uuid.UUID `json:"ownerId"`
}

func (e CampaignPaused) EventName() string { return "campaigns.paused" }

// CampaignResumed is published when an operator resumes a paused campaign.
type CampaignResumed struct {
	BaseEvent
	CampaignID uuid.UUID `json:"campaignId"`
	Name       string    `json:"name"`
	OwnerID    uuid.UUID `json:"ownerId"`
}

func (e CampaignResumed) EventName() string { return "campaigns.resumed" }

// CampaignStopped is published when an operator cancels a campaign before
// all numbers were dialed.
type CampaignStopped struct {
	BaseEvent
	CampaignID uuid.UUID `json:"campaignId"`
	Name       string    `json:"name"`
	OwnerID    uuid.UUID `json:"ownerId"`
	ChatID     int64     `json:"chatId,omitempty"`
	Dialed     int       `json:"dialed"`
	Total      int       `json:"total"`
}

func (e CampaignStopped) EventName() string { return "campaigns.stopped" }

// CampaignCompleted is published when every call of a campaign has reached a
// terminal status. Carries the final tallies so subscribers do not need to
// re-aggregate from the store.
type CampaignCompleted struct {
	BaseEvent
	CampaignID uuid.UUID      `json:"campaignId"`
	Name       string         `json:"name"`
	OwnerID    uuid.UUID      `json:"ownerId"`
	ChatID     int64          `json:"chatId,omitempty"`
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	Failed     int            `json:"failed"`
	Responses  map[string]int `json:"responses,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

func (e CampaignCompleted) EventName() string { return "campaigns.completed" }
