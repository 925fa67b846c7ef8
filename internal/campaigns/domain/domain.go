// Package domain holds the campaign lifecycle rules.
package domain

import "fmt"

// Status is the lifecycle state of a campaign.
type Status string

const (
	// StatusPending means the campaign is created and its call records are
	// queued, but dispatch has not started.
	StatusPending Status = "pending"
	// StatusActive means the dispatcher is originating calls.
	StatusActive Status = "active"
	// StatusPaused means the operator paused dispatch between chunks.
	StatusPaused Status = "paused"
	// StatusCompleted means every call reached a terminal status and at
	// least one was answered.
	StatusCompleted Status = "completed"
	// StatusFailed means the campaign finished with zero answered calls.
	StatusFailed Status = "failed"
	// StatusCancelled means the operator stopped the campaign early.
	StatusCancelled Status = "cancelled"
)

// IsFinal reports whether a campaign can no longer change state.
func (s Status) IsFinal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// transitions lists the allowed state changes.
var transitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusCancelled},
	StatusActive:  {StatusPaused, StatusCompleted, StatusFailed, StatusCancelled},
	StatusPaused:  {StatusActive, StatusCancelled},
}

// CanTransition reports whether a campaign may move from one status to
// another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// FinalStatus picks the terminal campaign status from the final tallies: a
// campaign with zero answered calls failed as a whole.
func FinalStatus(completed int) Status {
	if completed == 0 {
		return StatusFailed
	}
	return StatusCompleted
}

const (
	// MaxNumbers caps the size of one campaign's number list.
	MaxNumbers = 10_000

	// MaxNameLength bounds operator-supplied campaign names.
	MaxNameLength = 120
)

// ValidateName checks an operator-supplied campaign name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("campaign name is required")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("campaign name exceeds %d characters", MaxNameLength)
	}
	return nil
}
