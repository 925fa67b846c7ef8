// Package service implements the call event engine: it decodes manager
// events, correlates them to call records, applies the call state machine
// and reports campaign-level effects.
package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"autodial_backend/internal/ami"
	"autodial_backend/internal/calls/domain"
	"autodial_backend/internal/calls/repository"
	"autodial_backend/internal/events"
	"autodial_backend/platform/apperr"
	"autodial_backend/platform/config"
	"autodial_backend/platform/logger"

	"github.com/google/uuid"
)

// RecordStore is the persistence surface the engine needs. Implemented by
// the calls repository.
type RecordStore interface {
	RecordFinder
	WithRecordTx(ctx context.Context, callID string, fn func(rec *repository.CallRecord) error) (repository.CallRecord, error)
	CreateUnknown(ctx context.Context, uniqueID, channelName, targetNumber string, status domain.Status, metadata map[string]any) (repository.CallRecord, error)
}

// CampaignTracker receives call lifecycle callbacks. Calls arrive in commit
// order for any single call; the tracker must treat unknown campaign ids as
// a no-op.
type CampaignTracker interface {
	CallCompleted(campaignID uuid.UUID, outcome domain.Outcome)
	DTMFResponse(campaignID uuid.UUID)
}

const (
	// shardQueueSize bounds each shard's backlog. The manager read loop
	// must never block, so a full shard drops events instead.
	shardQueueSize = 1024

	// eventTimeout caps how long one event may hold a shard.
	eventTimeout = 15 * time.Second

	// maxSeenBridges triggers a sweep of old bridge claims.
	maxSeenBridges = 4096

	// bridgeMemory is how long a bridge claim is retained.
	bridgeMemory = time.Hour
)

// Service is the call event engine. Events for the same call are processed
// in arrival order on a single shard; events for different calls proceed in
// parallel across shards.
type Service struct {
	store    RecordStore
	resolver *Resolver
	tracker  CampaignTracker
	bus      events.Bus
	cfg      config.EngineConfig
	log      *logger.Logger

	now func() time.Time

	shards  []chan PBXEvent
	wg      sync.WaitGroup
	started bool

	bridgeMu    sync.Mutex
	seenBridges map[string]time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates the call event engine.
func New(store RecordStore, tracker CampaignTracker, bus events.Bus, cfg config.EngineConfig, log *logger.Logger, opts ...Option) *Service {
	shardCount := cfg.GetEngineShards()
	if shardCount < 1 {
		shardCount = 1
	}
	shards := make([]chan PBXEvent, shardCount)
	for i := range shards {
		shards[i] = make(chan PBXEvent, shardQueueSize)
	}

	s := &Service{
		store:       store,
		resolver:    NewResolver(store, log),
		tracker:     tracker,
		bus:         bus,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
		shards:      shards,
		seenBridges: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the shard workers. They run until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	if s.started {
		return
	}
	s.started = true
	for _, ch := range s.shards {
		s.wg.Add(1)
		go s.worker(ctx, ch)
	}
	s.log.Info("call event engine started", "shards", len(s.shards))
}

// Wait blocks until every shard worker has exited.
func (s *Service) Wait() {
	s.wg.Wait()
}

// HandleEvent is the manager event callback. It decodes the frame, picks
// the shard that owns the call and enqueues without blocking; events the
// engine does not consume are discarded here.
func (s *Service) HandleEvent(e ami.Event) {
	ev, ok := Decode(e)
	if !ok {
		return
	}
	idx := s.shardFor(ev.Correlate())
	select {
	case s.shards[idx] <- ev:
	default:
		s.log.Warn("shard queue full, dropping event",
			"shard", idx,
			"event", fmt.Sprintf("%T", ev),
			"unique_id", ev.Correlate().UniqueID,
		)
	}
}

// shardFor keys on the unique id so every event of one channel lands on the
// same shard, falling back to the channel name for frames without one.
func (s *Service) shardFor(corr Correlation) int {
	key := corr.UniqueID
	if key == "" {
		key = corr.ChannelName
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(s.shards)))
}

func (s *Service) worker(ctx context.Context, ch chan PBXEvent) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			s.safeProcess(ctx, ev)
		}
	}
}

// safeProcess shields the worker loop: a panic or error in one event must
// never take the engine down.
func (s *Service) safeProcess(ctx context.Context, ev PBXEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("event handler panicked",
				"panic", fmt.Sprintf("%v", r),
				"event", fmt.Sprintf("%T", ev),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	if err := s.process(ctx, ev); err != nil {
		s.log.Error("failed to process event",
			"error", err.Error(),
			"event", fmt.Sprintf("%T", ev),
			"unique_id", ev.Correlate().UniqueID,
		)
	}
}

func (s *Service) process(ctx context.Context, ev PBXEvent) error {
	rec, err := s.resolver.Resolve(ctx, ev)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return s.handleUnresolved(ctx, ev)
		}
		return err
	}

	firstBridgeLeg := false
	if bridge, ok := ev.(BridgeEntered); ok {
		firstBridgeLeg = s.claimBridge(bridge.BridgeID)
	}

	var eff effects
	updated, err := s.store.WithRecordTx(ctx, rec.CallID, func(r *repository.CallRecord) error {
		eff = applyPBXEvent(r, ev, s.now(), firstBridgeLeg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply event to call %s: %w", rec.CallID, err)
	}

	s.emit(ctx, updated, eff)
	return nil
}

// emit acts on the effects of a committed transition: campaign counters
// first (they are the ordered path), bus events after.
func (s *Service) emit(ctx context.Context, rec repository.CallRecord, eff effects) {
	if eff.dtmfDigit != "" {
		if rec.CampaignID != nil {
			s.tracker.DTMFResponse(*rec.CampaignID)
		}
		s.bus.Publish(ctx, events.CallDTMFReceived{
			BaseEvent:      events.NewBaseEvent(),
			CallID:         rec.CallID,
			CampaignID:     rec.CampaignID,
			TargetNumber:   rec.TargetNumber,
			SequenceNumber: rec.SequenceNumber,
			Digit:          eff.dtmfDigit,
		})
	}

	if eff.statusChanged {
		s.log.CallEvent(rec.CallID, string(eff.fromStatus), string(eff.toStatus))
		s.bus.Publish(ctx, events.CallStateChanged{
			BaseEvent:    events.NewBaseEvent(),
			CallID:       rec.CallID,
			CampaignID:   rec.CampaignID,
			UniqueID:     rec.UniqueID,
			TargetNumber: rec.TargetNumber,
			FromStatus:   string(eff.fromStatus),
			ToStatus:     string(eff.toStatus),
		})
	}

	if eff.finished {
		if rec.CampaignID != nil {
			s.tracker.CallCompleted(*rec.CampaignID, eff.outcome)
		}
		s.bus.Publish(ctx, events.CallFinished{
			BaseEvent:       events.NewBaseEvent(),
			CallID:          rec.CallID,
			CampaignID:      rec.CampaignID,
			TargetNumber:    rec.TargetNumber,
			SequenceNumber:  rec.SequenceNumber,
			Status:          string(eff.toStatus),
			Answered:        eff.outcome == domain.OutcomeAnswered,
			HangupCause:     eff.hangupCause,
			DurationSeconds: eff.duration.Seconds(),
		})
	}
}

// handleUnresolved deals with events no record claims. Channel creations
// and DTMF presses can open a forensic record when unknown-call tracking is
// on; everything else is dropped with a log line.
func (s *Service) handleUnresolved(ctx context.Context, ev PBXEvent) error {
	corr := ev.Correlate()

	if !s.cfg.GetTrackUnknownCalls() {
		s.log.Debug("dropping uncorrelated event",
			"event", fmt.Sprintf("%T", ev),
			"unique_id", corr.UniqueID,
			"channel", corr.ChannelName,
		)
		return nil
	}

	switch e := ev.(type) {
	case ChannelCreated:
		// Foreign contexts carry the PBX's unrelated traffic; only channels
		// entering the dialer's own context are worth a forensic record.
		if dialCtx := s.cfg.GetDialContext(); dialCtx != "" && e.Context != dialCtx {
			s.log.Debug("ignoring channel outside dial context",
				"channel", corr.ChannelName,
				"context", e.Context,
			)
			return nil
		}
		rec, err := s.store.CreateUnknown(ctx, corr.UniqueID, corr.ChannelName,
			domain.TargetFromChannel(corr.ChannelName),
			domain.StatusUnknownOrigin,
			map[string]any{
				"asterisk_context": e.Context,
				"asterisk_exten":   e.Exten,
				"first_event":      "Newchannel",
				"observed_at":      s.now(),
			})
		if err != nil {
			return fmt.Errorf("failed to track unknown call: %w", err)
		}
		s.log.Warn("tracking call of unknown origin",
			"call_id", rec.CallID,
			"channel", corr.ChannelName,
		)
		return nil

	case DTMFBegin:
		rec, err := s.store.CreateUnknown(ctx, corr.UniqueID, corr.ChannelName,
			domain.TargetFromChannel(corr.ChannelName),
			domain.StatusUnknownDTMF,
			map[string]any{
				"digit":       e.Digit,
				"first_event": "DTMFBegin",
				"observed_at": s.now(),
			})
		if err != nil {
			return fmt.Errorf("failed to track unknown dtmf: %w", err)
		}
		s.log.Warn("dtmf from unknown call",
			"call_id", rec.CallID,
			"digit", e.Digit,
		)
		return nil
	}

	s.log.Debug("dropping uncorrelated event",
		"event", fmt.Sprintf("%T", ev),
		"unique_id", corr.UniqueID,
		"channel", corr.ChannelName,
	)
	return nil
}

// claimBridge returns true exactly once per bridge id. The PBX emits a
// BridgeEnter per leg and the legs can land on different shards, so the
// claim set is locked rather than shard-local.
func (s *Service) claimBridge(bridgeID string) bool {
	if bridgeID == "" {
		return false
	}
	s.bridgeMu.Lock()
	defer s.bridgeMu.Unlock()

	if _, seen := s.seenBridges[bridgeID]; seen {
		return false
	}
	if len(s.seenBridges) >= maxSeenBridges {
		cutoff := s.now().Add(-bridgeMemory)
		for id, at := range s.seenBridges {
			if at.Before(cutoff) {
				delete(s.seenBridges, id)
			}
		}
	}
	s.seenBridges[bridgeID] = s.now()
	return true
}
