package transport

import (
	"time"

	"autodial_backend/internal/calls/repository"

	"github.com/google/uuid"
)

// CallRecordResponse is the API representation of one call attempt.
type CallRecordResponse struct {
	CallID         string         `json:"callId"`
	TrackingID     string         `json:"trackingId,omitempty"`
	UniqueID       string         `json:"uniqueId,omitempty"`
	Channel        string         `json:"channel,omitempty"`
	CampaignID     *uuid.UUID     `json:"campaignId,omitempty"`
	SequenceNumber int            `json:"sequenceNumber"`
	TargetNumber   string         `json:"targetNumber"`
	CallerID       string         `json:"callerId,omitempty"`
	Trunk          string         `json:"trunk,omitempty"`
	Status         string         `json:"status"`
	DTMFDigits     string         `json:"dtmfDigits,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	StartTime      *time.Time     `json:"startTime,omitempty"`
	EndTime        *time.Time     `json:"endTime,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// ToCallRecordResponse converts a stored record to its API shape.
func ToCallRecordResponse(rec repository.CallRecord) CallRecordResponse {
	return CallRecordResponse{
		CallID:         rec.CallID,
		TrackingID:     rec.TrackingID,
		UniqueID:       rec.UniqueID,
		Channel:        rec.ChannelName,
		CampaignID:     rec.CampaignID,
		SequenceNumber: rec.SequenceNumber,
		TargetNumber:   rec.TargetNumber,
		CallerID:       rec.CallerID,
		Trunk:          rec.Trunk,
		Status:         string(rec.Status),
		DTMFDigits:     rec.DTMFDigits,
		Metadata:       rec.Metadata,
		StartTime:      rec.StartTime,
		EndTime:        rec.EndTime,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

// ToCallRecordResponses converts a slice of stored records.
func ToCallRecordResponses(recs []repository.CallRecord) []CallRecordResponse {
	out := make([]CallRecordResponse, len(recs))
	for i, rec := range recs {
		out[i] = ToCallRecordResponse(rec)
	}
	return out
}

// ListStaleCallsRequest is the query parameters for the stale-call report.
type ListStaleCallsRequest struct {
	OlderThan string `form:"olderThan" validate:"omitempty,max=32"`
}

// StaleCallsResponse wraps the stale-call report.
type StaleCallsResponse struct {
	OlderThan string               `json:"olderThan"`
	Count     int                  `json:"count"`
	Calls     []CallRecordResponse `json:"calls"`
}
