package service

import (
	"context"
	"fmt"

	"autodial_backend/internal/calls/domain"
	"autodial_backend/internal/calls/repository"
	"autodial_backend/platform/apperr"
	"autodial_backend/platform/logger"
)

// RecordFinder is the read-side lookup surface the resolver matches events
// against. Implemented by the calls repository.
type RecordFinder interface {
	GetByCallID(ctx context.Context, callID string) (repository.CallRecord, error)
	GetByUniqueID(ctx context.Context, uniqueID string) (repository.CallRecord, error)
	GetByTrackingID(ctx context.Context, trackingID string) (repository.CallRecord, error)
	GetByChannel(ctx context.Context, channelName string) (repository.CallRecord, error)
	LatestByTarget(ctx context.Context, targetNumber string) (repository.CallRecord, error)
	LatestPending(ctx context.Context) (repository.CallRecord, error)
}

// Resolver matches PBX events to call records by walking a fixed fallback
// chain, strongest identifier first. The same chain applies to every event
// type; the two broad-match steps at the end run only for channel-creation
// events, where a fresh channel may legitimately predate its identifiers.
type Resolver struct {
	store RecordFinder
	log   *logger.Logger
}

// NewResolver creates a resolver over the given record store.
func NewResolver(store RecordFinder, log *logger.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// Resolve returns the call record the event belongs to, or a not-found error
// when no step of the chain matches. Resolution never mutates records: a
// miss on one identifier leaves the remaining steps (and later events) a
// clean slate.
func (r *Resolver) Resolve(ctx context.Context, ev PBXEvent) (repository.CallRecord, error) {
	corr := ev.Correlate()

	// Step 1: exact PBX unique id.
	if corr.UniqueID != "" {
		got, lookupErr := r.store.GetByUniqueID(ctx, corr.UniqueID)
		rec, ok, err := r.found(ctx, "unique_id", got, lookupErr)
		if ok || err != nil {
			return rec, err
		}
		// The originate action pins the channel id to the call id, so the
		// main leg's unique id doubles as a call id.
		got, lookupErr = r.store.GetByCallID(ctx, corr.UniqueID)
		rec, ok, err = r.found(ctx, "unique_id_as_call_id", got, lookupErr)
		if ok || err != nil {
			return rec, err
		}
	}

	// Step 2: CallID channel variable, inherited by every child channel.
	if corr.CallID != "" {
		got, lookupErr := r.store.GetByCallID(ctx, corr.CallID)
		rec, ok, err := r.found(ctx, "call_id_variable", got, lookupErr)
		if ok || err != nil {
			return rec, err
		}
	}

	// Step 3: tracking id, carried by IVR user events.
	if corr.TrackingID != "" {
		got, lookupErr := r.store.GetByTrackingID(ctx, corr.TrackingID)
		rec, ok, err := r.found(ctx, "tracking_id", got, lookupErr)
		if ok || err != nil {
			return rec, err
		}
	}

	// Step 4: channel name stamped by an earlier event.
	if corr.ChannelName != "" {
		got, lookupErr := r.store.GetByChannel(ctx, corr.ChannelName)
		rec, ok, err := r.found(ctx, "channel_name", got, lookupErr)
		if ok || err != nil {
			return rec, err
		}
	}

	// Steps 5 and 6 match broadly and only make sense for the first event a
	// channel can produce. Applying them to mid-call events would let noise
	// attach to unrelated records.
	if _, creation := ev.(ChannelCreated); creation {
		if target := domain.TargetFromChannel(corr.ChannelName); target != "" {
			got, lookupErr := r.store.LatestByTarget(ctx, target)
			rec, ok, err := r.found(ctx, "target_number", got, lookupErr)
			if ok || err != nil {
				return rec, err
			}
		}

		got, lookupErr := r.store.LatestPending(ctx)
		rec, ok, err := r.found(ctx, "latest_pending", got, lookupErr)
		if ok || err != nil {
			return rec, err
		}
	}

	return repository.CallRecord{}, apperr.NotFound("no call record matches event")
}

// found normalizes one lookup attempt: a hit stops the chain, a not-found
// moves on to the next step, and any other error aborts resolution.
func (r *Resolver) found(ctx context.Context, step string, rec repository.CallRecord, err error) (repository.CallRecord, bool, error) {
	if err == nil {
		r.log.WithContext(ctx).Debug("correlated event to call record",
			"call_id", rec.CallID,
			"step", step,
		)
		return rec, true, nil
	}
	if apperr.Is(err, apperr.KindNotFound) {
		return repository.CallRecord{}, false, nil
	}
	return repository.CallRecord{}, false, fmt.Errorf("failed to resolve event at step %s: %w", step, err)
}
