// Package domain provides core business rules for the calls bounded context:
// the call status lifecycle, terminal classification, and the identifier
// formats shared between origination and event correlation.
package domain

import "time"

// Status is the lifecycle state of one outbound call attempt.
type Status string

const (
	// Dispatch phase.
	StatusQueued     Status = "queued"
	StatusInitiating Status = "initiating"
	StatusSending    Status = "sending"

	// PBX progress phase.
	StatusDialing Status = "dialing"
	StatusRinging Status = "ringing"

	// Connected phase.
	StatusConnected     Status = "connected"
	StatusAnswered      Status = "answered"
	StatusBridged       Status = "bridged"
	StatusDTMFStarted   Status = "dtmf_started"
	StatusDTMFProcessed Status = "dtmf_processed"

	// Terminal.
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"

	// Calls this system did not originate but chose to track.
	StatusUnknownOrigin Status = "unknown_origin"
	StatusUnknownDTMF   Status = "unknown_dtmf"
)

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusError:     true,
	StatusFailed:    true,
	StatusCancelled: true,
}

// IsTerminal reports whether a call in this status may never change status
// again. Events correlated to a terminal call append metadata only.
func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

var connectedPhase = map[Status]bool{
	StatusConnected:     true,
	StatusAnswered:      true,
	StatusBridged:       true,
	StatusDTMFStarted:   true,
	StatusDTMFProcessed: true,
}

// InConnectedPhase reports whether the callee had picked up by this status.
func InConnectedPhase(s Status) bool {
	return connectedPhase[s]
}

// Outcome classifies a finished call for campaign counters.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeFailed   Outcome = "failed"
)

// AnsweredThreshold is the connection duration above which a hangup counts
// as answered even when no connected-phase status was observed. Covers
// calls where the up-state event was lost but the call clearly lasted.
const AnsweredThreshold = 10 * time.Second

// ClassifyHangup returns the outcome for a hangup observed on a call in the
// given status after the given duration.
func ClassifyHangup(s Status, duration time.Duration) Outcome {
	if InConnectedPhase(s) || duration > AnsweredThreshold {
		return OutcomeAnswered
	}
	return OutcomeFailed
}

// StatusForDialResult maps a PBX dial status to the call status it implies.
// ANSWER is progress, not terminal; the failure results terminate the call.
// Unrecognized dial statuses return false and cause no transition.
func StatusForDialResult(dialStatus string) (Status, bool) {
	switch dialStatus {
	case "ANSWER":
		return StatusAnswered, true
	case "NOANSWER", "BUSY", "CONGESTION", "CHANUNAVAIL":
		return StatusFailed, true
	case "CANCEL":
		return StatusCancelled, true
	}
	return "", false
}
