// Package dispatch originates campaign calls in paced batches through the
// PBX manager interface, driven by a background job queue.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"autodial_backend/internal/calls/domain"
	"autodial_backend/internal/calls/repository"
	"autodial_backend/internal/campaigns/aggregator"
	"autodial_backend/platform/config"
	"autodial_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultConcurrency is the chunk size used when a campaign carries none.
const DefaultConcurrency = 5

// defaultChunkPause spaces chunks out so the PBX is not flooded.
const defaultChunkPause = 500 * time.Millisecond

// pausePoll is how often a paused dispatch re-checks its gate.
const pausePoll = time.Second

// errRecordTaken aborts a dial when the record left the queued status, for
// example because the campaign was stopped while the chunk was forming.
var errRecordTaken = errors.New("record no longer queued")

// RecordStore is the slice of the call store the dispatcher needs.
// Implemented by the calls repository.
type RecordStore interface {
	WithRecordTx(ctx context.Context, callID string, fn func(rec *repository.CallRecord) error) (repository.CallRecord, error)
}

// Originator submits one prepared call record to the PBX and reports
// synchronous rejections.
type Originator interface {
	Originate(ctx context.Context, rec repository.CallRecord) error
}

// Dispatcher walks a campaign's queued records in chunks of the campaign's
// call concurrency, originating each chunk in parallel and pacing between
// chunks. One dispatcher instance serves all campaigns; each Run call owns
// one campaign, but the pacer is shared, so the PBX sees at most one chunk
// burst per interval no matter how many campaigns dial concurrently.
type Dispatcher struct {
	records    RecordStore
	agg        *aggregator.Aggregator
	originator Originator
	pacer      *rate.Limiter
	log        *logger.Logger
	now        func() time.Time
}

func NewDispatcher(records RecordStore, agg *aggregator.Aggregator, originator Originator, cfg config.CampaignConfig, log *logger.Logger) *Dispatcher {
	pause := cfg.GetChunkPause()
	if pause <= 0 {
		pause = defaultChunkPause
	}
	return &Dispatcher{
		records:    records,
		agg:        agg,
		originator: originator,
		pacer:      rate.NewLimiter(rate.Every(pause), 1),
		log:        log,
		now:        time.Now,
	}
}

// RunResult summarizes one dispatch pass.
type RunResult struct {
	Originated int
	Rejected   int
	Skipped    int
	Aborted    bool
}

// Run originates every record in order, concurrency at a time. It returns
// early when the context ends or the campaign's live state disappears;
// per-record failures never stop the pass.
func (d *Dispatcher) Run(ctx context.Context, campaignID uuid.UUID, concurrency int, records []repository.CallRecord) RunResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var res RunResult
	var mu sync.Mutex

	for start := 0; start < len(records); start += concurrency {
		if !d.gate(ctx, campaignID) {
			res.Aborted = true
			return res
		}

		end := min(start+concurrency, len(records))
		g, gctx := errgroup.WithContext(ctx)
		for _, rec := range records[start:end] {
			rec := rec
			g.Go(func() error {
				outcome := d.dialOne(gctx, campaignID, rec)
				mu.Lock()
				switch outcome {
				case dialOriginated:
					res.Originated++
				case dialRejected:
					res.Rejected++
				case dialSkipped:
					res.Skipped++
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		d.agg.PushProgress(ctx, campaignID)

		if end < len(records) {
			if err := d.pacer.Wait(ctx); err != nil {
				res.Aborted = true
				return res
			}
		}
	}
	return res
}

// gate blocks while the campaign is paused and reports false when the run
// must abort: context over, or live state gone because the campaign was
// stopped.
func (d *Dispatcher) gate(ctx context.Context, campaignID uuid.UUID) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		if !d.agg.Alive(campaignID) {
			return false
		}
		if !d.agg.IsPaused(campaignID) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pausePoll):
		}
	}
}

type dialOutcome int

const (
	dialOriginated dialOutcome = iota
	dialRejected
	dialSkipped
)

// dialOne moves a record through queued -> initiating -> sending around the
// originate call. A synchronous PBX rejection marks the record error and
// counts a failure without ever counting it active.
func (d *Dispatcher) dialOne(ctx context.Context, campaignID uuid.UUID, rec repository.CallRecord) dialOutcome {
	prepared, err := d.records.WithRecordTx(ctx, rec.CallID, func(r *repository.CallRecord) error {
		if r.Status != domain.StatusQueued {
			return errRecordTaken
		}
		now := d.now()
		r.Status = domain.StatusInitiating
		r.ActionID = domain.ActionIDFor(r.CallID)
		r.StartTime = &now
		r.MergeMetadata(map[string]any{
			"dispatch_time": now.UTC().Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, errRecordTaken) {
			d.log.Debug("skipping record no longer queued", "call_id", rec.CallID)
		} else {
			d.log.Error("failed to prepare call record",
				"call_id", rec.CallID,
				"error", err.Error(),
			)
		}
		return dialSkipped
	}

	if err := d.originator.Originate(ctx, prepared); err != nil {
		d.log.Error("originate rejected",
			"call_id", prepared.CallID,
			"target", prepared.TargetNumber,
			"error", err.Error(),
		)
		if _, uerr := d.records.WithRecordTx(ctx, prepared.CallID, func(r *repository.CallRecord) error {
			now := d.now()
			r.Status = domain.StatusError
			r.EndTime = &now
			r.MergeMetadata(map[string]any{
				"originate_error":      err.Error(),
				"originate_error_time": now.UTC().Format(time.RFC3339),
			})
			return nil
		}); uerr != nil {
			d.log.Error("failed to record originate error", "call_id", prepared.CallID, "error", uerr.Error())
		}
		d.agg.OriginateFailed(campaignID)
		return dialRejected
	}

	// The PBX accepted the dial; count it active before any of its events
	// can land. Channel events racing this update may already have advanced
	// the status, so sending only overwrites initiating.
	d.agg.CallStarted(campaignID)
	d.log.Info("call originated",
		"call_id", prepared.CallID,
		"target", prepared.TargetNumber,
		"caller_id", prepared.CallerID,
	)

	if _, uerr := d.records.WithRecordTx(ctx, prepared.CallID, func(r *repository.CallRecord) error {
		if r.Status == domain.StatusInitiating {
			r.Status = domain.StatusSending
		}
		return nil
	}); uerr != nil {
		d.log.Error("failed to mark record sending", "call_id", prepared.CallID, "error", uerr.Error())
	}
	return dialOriginated
}
