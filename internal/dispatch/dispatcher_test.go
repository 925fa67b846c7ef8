package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"autodial_backend/internal/calls/domain"
	"autodial_backend/internal/calls/repository"
	"autodial_backend/internal/campaigns/aggregator"
	"autodial_backend/platform/apperr"
	"autodial_backend/platform/logger"

	"github.com/google/uuid"
)

type testStore struct {
	mu      sync.Mutex
	records map[string]*repository.CallRecord
}

func newTestStore(records []repository.CallRecord) *testStore {
	s := &testStore{records: make(map[string]*repository.CallRecord)}
	for i := range records {
		rec := records[i]
		s.records[rec.CallID] = &rec
	}
	return s
}

func (s *testStore) WithRecordTx(_ context.Context, callID string, fn func(rec *repository.CallRecord) error) (repository.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[callID]
	if !ok {
		return repository.CallRecord{}, apperr.NotFound("call record not found")
	}
	updated := *rec
	if err := fn(&updated); err != nil {
		return repository.CallRecord{}, err
	}
	updated.UpdatedAt = time.Now()
	s.records[callID] = &updated
	return updated, nil
}

func (s *testStore) get(t *testing.T, callID string) repository.CallRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[callID]
	if !ok {
		t.Fatalf("record %s missing from store", callID)
	}
	return *rec
}

func (s *testStore) setStatus(callID string, status domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[callID]; ok {
		rec.Status = status
	}
}

type testOriginator struct {
	mu      sync.Mutex
	order   []int
	failSeq map[int]bool
	onCall  func(count int)
}

func (o *testOriginator) Originate(_ context.Context, rec repository.CallRecord) error {
	o.mu.Lock()
	o.order = append(o.order, rec.SequenceNumber)
	count := len(o.order)
	fail := o.failSeq[rec.SequenceNumber]
	hook := o.onCall
	o.mu.Unlock()

	if hook != nil {
		hook(count)
	}
	if fail {
		return errors.New("dial manager refused")
	}
	return nil
}

func (o *testOriginator) sequences() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.order...)
}

type testCampaignConfig struct{}

func (testCampaignConfig) GetDefaultCallConcurrency() int         { return 5 }
func (testCampaignConfig) GetChunkPause() time.Duration           { return time.Millisecond }
func (testCampaignConfig) GetMaxCampaignNumbers() int             { return 10_000 }
func (testCampaignConfig) GetProgressEditInterval() time.Duration { return time.Hour }

func queuedRecords(campaignID uuid.UUID, n int) []repository.CallRecord {
	base := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	records := make([]repository.CallRecord, n)
	for i := 0; i < n; i++ {
		seq := i + 1
		id := campaignID
		records[i] = repository.CallRecord{
			CallID:         domain.NewCallID(campaignID, seq, base),
			TrackingID:     domain.NewTrackingID(seq),
			CampaignID:     &id,
			SequenceNumber: seq,
			TargetNumber:   fmt.Sprintf("+1555%07d", seq),
			CallerID:       "+15550001111",
			Trunk:          "trunk-a",
			Status:         domain.StatusQueued,
			CreatedAt:      base,
		}
	}
	return records
}

func newLaunchedAggregator(campaignID uuid.UUID, total int) *aggregator.Aggregator {
	agg := aggregator.NewAggregator(nil, time.Hour, logger.New("development"))
	agg.Launch(aggregator.LaunchParams{CampaignID: campaignID, Name: "Test wave", Total: total})
	return agg
}

func TestRunChunksByConcurrency(t *testing.T) {
	campaignID := uuid.New()
	records := queuedRecords(campaignID, 23)
	store := newTestStore(records)
	orig := &testOriginator{}
	agg := newLaunchedAggregator(campaignID, 23)
	d := NewDispatcher(store, agg, orig, testCampaignConfig{}, logger.New("development"))

	res := d.Run(context.Background(), campaignID, 5, records)

	if res.Aborted {
		t.Fatal("run aborted unexpectedly")
	}
	if res.Originated != 23 || res.Rejected != 0 || res.Skipped != 0 {
		t.Fatalf("result = %+v, want 23 originated", res)
	}

	// 23 records at concurrency 5 dial as windows 1-5, 6-10, 11-15, 16-20,
	// 21-23. Order inside a window is free, order across windows is not.
	order := orig.sequences()
	if len(order) != 23 {
		t.Fatalf("originated %d records, want 23", len(order))
	}
	wantSizes := []int{5, 5, 5, 5, 3}
	pos := 0
	for chunk, size := range wantSizes {
		window := append([]int(nil), order[pos:pos+size]...)
		sort.Ints(window)
		for i, seq := range window {
			if want := pos + i + 1; seq != want {
				t.Fatalf("chunk %d = %v, want window %d-%d", chunk, window, pos+1, pos+size)
			}
		}
		pos += size
	}

	for _, rec := range records {
		got := store.get(t, rec.CallID)
		if got.Status != domain.StatusSending {
			t.Errorf("record %d status = %s, want sending", rec.SequenceNumber, got.Status)
		}
		if got.StartTime == nil {
			t.Errorf("record %d has no start time", rec.SequenceNumber)
		}
		if got.ActionID != domain.ActionIDFor(rec.CallID) {
			t.Errorf("record %d action id = %q", rec.SequenceNumber, got.ActionID)
		}
	}

	snap, _ := agg.Snapshot(campaignID)
	if snap.Active != 23 {
		t.Errorf("Active = %d, want 23 while no call has finished", snap.Active)
	}
}

func TestRunRejectedOriginate(t *testing.T) {
	campaignID := uuid.New()
	records := queuedRecords(campaignID, 3)
	store := newTestStore(records)
	orig := &testOriginator{failSeq: map[int]bool{2: true}}
	agg := newLaunchedAggregator(campaignID, 3)
	d := NewDispatcher(store, agg, orig, testCampaignConfig{}, logger.New("development"))

	res := d.Run(context.Background(), campaignID, 5, records)

	if res.Originated != 2 || res.Rejected != 1 {
		t.Fatalf("result = %+v, want 2 originated 1 rejected", res)
	}

	rejected := store.get(t, records[1].CallID)
	if rejected.Status != domain.StatusError {
		t.Errorf("rejected record status = %s, want error", rejected.Status)
	}
	if rejected.EndTime == nil {
		t.Error("rejected record has no end time")
	}
	if _, ok := rejected.Metadata["originate_error"]; !ok {
		t.Error("rejected record missing originate_error metadata")
	}

	// A synchronous rejection never counts the call active.
	snap, _ := agg.Snapshot(campaignID)
	if snap.Active != 2 || snap.Failed != 1 {
		t.Errorf("Active/Failed = %d/%d, want 2/1", snap.Active, snap.Failed)
	}
}

func TestRunSkipsRecordsNoLongerQueued(t *testing.T) {
	campaignID := uuid.New()
	records := queuedRecords(campaignID, 3)
	store := newTestStore(records)
	store.setStatus(records[1].CallID, domain.StatusCancelled)
	orig := &testOriginator{}
	agg := newLaunchedAggregator(campaignID, 3)
	d := NewDispatcher(store, agg, orig, testCampaignConfig{}, logger.New("development"))

	res := d.Run(context.Background(), campaignID, 5, records)

	if res.Originated != 2 || res.Skipped != 1 {
		t.Fatalf("result = %+v, want 2 originated 1 skipped", res)
	}
	if got := store.get(t, records[1].CallID); got.Status != domain.StatusCancelled {
		t.Errorf("cancelled record status = %s, want untouched", got.Status)
	}
	for _, seq := range orig.sequences() {
		if seq == 2 {
			t.Error("cancelled record was originated")
		}
	}
}

func TestRunAbortsWhenCampaignStopped(t *testing.T) {
	campaignID := uuid.New()
	records := queuedRecords(campaignID, 10)
	store := newTestStore(records)
	agg := newLaunchedAggregator(campaignID, 10)
	orig := &testOriginator{}
	orig.onCall = func(count int) {
		if count == 5 {
			// Operator stops the campaign while the first chunk is dialing.
			agg.Remove(campaignID)
		}
	}
	d := NewDispatcher(store, agg, orig, testCampaignConfig{}, logger.New("development"))

	res := d.Run(context.Background(), campaignID, 5, records)

	if !res.Aborted {
		t.Fatal("run did not abort after campaign state was removed")
	}
	if res.Originated != 5 {
		t.Errorf("originated %d records, want only the first chunk of 5", res.Originated)
	}
	for _, rec := range records[5:] {
		if got := store.get(t, rec.CallID); got.Status != domain.StatusQueued {
			t.Errorf("record %d status = %s, want still queued", rec.SequenceNumber, got.Status)
		}
	}
}

func TestRunAbortsOnContextCancel(t *testing.T) {
	campaignID := uuid.New()
	records := queuedRecords(campaignID, 10)
	store := newTestStore(records)
	agg := newLaunchedAggregator(campaignID, 10)
	ctx, cancel := context.WithCancel(context.Background())
	orig := &testOriginator{}
	orig.onCall = func(count int) {
		if count == 5 {
			cancel()
		}
	}
	d := NewDispatcher(store, agg, orig, testCampaignConfig{}, logger.New("development"))

	res := d.Run(ctx, campaignID, 5, records)

	if !res.Aborted {
		t.Fatal("run did not abort after context cancel")
	}
	if res.Originated != 5 {
		t.Errorf("originated %d records, want 5", res.Originated)
	}
}

func TestRunWaitsWhilePaused(t *testing.T) {
	campaignID := uuid.New()
	records := queuedRecords(campaignID, 3)
	store := newTestStore(records)
	agg := newLaunchedAggregator(campaignID, 3)
	orig := &testOriginator{}
	d := NewDispatcher(store, agg, orig, testCampaignConfig{}, logger.New("development"))

	agg.Pause(campaignID)

	done := make(chan RunResult, 1)
	go func() {
		done <- d.Run(context.Background(), campaignID, 1, records)
	}()

	time.Sleep(100 * time.Millisecond)
	if got := len(orig.sequences()); got != 0 {
		t.Fatalf("%d records originated while paused, want 0", got)
	}

	agg.Resume(campaignID)

	select {
	case res := <-done:
		if res.Aborted || res.Originated != 3 {
			t.Fatalf("result = %+v, want 3 originated after resume", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after resume")
	}
}

func TestRunDefaultsConcurrency(t *testing.T) {
	campaignID := uuid.New()
	records := queuedRecords(campaignID, 7)
	store := newTestStore(records)
	orig := &testOriginator{}
	agg := newLaunchedAggregator(campaignID, 7)
	d := NewDispatcher(store, agg, orig, testCampaignConfig{}, logger.New("development"))

	res := d.Run(context.Background(), campaignID, 0, records)

	if res.Originated != 7 {
		t.Fatalf("originated %d, want 7", res.Originated)
	}
	// With the default of 5, record 6 must come after all of 1-5.
	order := orig.sequences()
	first := append([]int(nil), order[:5]...)
	sort.Ints(first)
	for i, seq := range first {
		if seq != i+1 {
			t.Fatalf("first window = %v, want 1-5", first)
		}
	}
}

func TestRunLeavesAdvancedStatusAlone(t *testing.T) {
	campaignID := uuid.New()
	records := queuedRecords(campaignID, 1)
	store := newTestStore(records)
	agg := newLaunchedAggregator(campaignID, 1)
	orig := &testOriginator{}
	orig.onCall = func(int) {
		// A channel event lands before the dispatcher can mark the record
		// sending.
		store.setStatus(records[0].CallID, domain.StatusDialing)
	}
	d := NewDispatcher(store, agg, orig, testCampaignConfig{}, logger.New("development"))

	res := d.Run(context.Background(), campaignID, 5, records)

	if res.Originated != 1 {
		t.Fatalf("originated %d, want 1", res.Originated)
	}
	if got := store.get(t, records[0].CallID); got.Status != domain.StatusDialing {
		t.Errorf("status = %s, want dialing preserved over sending", got.Status)
	}
}
