package aggregator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"autodial_backend/platform/logger"

	"github.com/google/uuid"
)

type testNotifier struct {
	mu    sync.Mutex
	edits []string
	ch    chan string
}

func newTestNotifier() *testNotifier {
	return &testNotifier{ch: make(chan string, 32)}
}

func (n *testNotifier) EditMessage(_ context.Context, _, _ int64, text string) error {
	n.mu.Lock()
	n.edits = append(n.edits, text)
	n.mu.Unlock()
	n.ch <- text
	return nil
}

func (n *testNotifier) expectEdit(t *testing.T) string {
	t.Helper()
	select {
	case text := <-n.ch:
		return text
	case <-time.After(2 * time.Second):
		t.Fatal("expected a progress edit, got none")
		return ""
	}
}

func (n *testNotifier) expectQuiet(t *testing.T) {
	t.Helper()
	select {
	case text := <-n.ch:
		t.Fatalf("expected no progress edit, got %q", text)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestAggregator(notifier ProgressNotifier) *Aggregator {
	return NewAggregator(notifier, time.Hour, logger.New("development"))
}

// waitPushIdle blocks until the campaign's in-flight progress push (if any)
// has settled, so the next forced push is not coalesced away.
func waitPushIdle(t *testing.T, a *Aggregator, id uuid.UUID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		a.mu.Lock()
		s, ok := a.states[id]
		idle := !ok || !s.pushing
		a.mu.Unlock()
		if idle {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("progress push never settled")
}

func launched(a *Aggregator, total int) uuid.UUID {
	id := uuid.New()
	a.Launch(LaunchParams{
		CampaignID: id,
		Name:       "Evening wave",
		Total:      total,
		ChatID:     100,
		MessageID:  200,
	})
	return id
}

func TestCounterConservation(t *testing.T) {
	a := newTestAggregator(nil)
	id := launched(a, 6)

	check := func(step string) {
		t.Helper()
		snap, ok := a.Snapshot(id)
		if !ok {
			t.Fatalf("%s: campaign state missing", step)
		}
		if sum := snap.Active + snap.Completed + snap.Failed; sum > snap.Total {
			t.Fatalf("%s: active+completed+failed = %d exceeds total %d", step, sum, snap.Total)
		}
		if snap.Active < 0 {
			t.Fatalf("%s: active went negative", step)
		}
	}

	outcomes := []bool{true, false, true, true, false, true}
	for i, answered := range outcomes {
		a.CallStarted(id)
		check("started")
		if i%2 == 0 {
			a.DTMFResponse(id)
		}
		a.CallFinished(id, answered)
		check("finished")
	}

	snap, _ := a.Snapshot(id)
	if snap.Active != 0 {
		t.Errorf("Active = %d, want 0 after all calls finished", snap.Active)
	}
	if snap.Completed+snap.Failed != snap.Total {
		t.Errorf("Completed+Failed = %d, want %d", snap.Completed+snap.Failed, snap.Total)
	}
	if snap.Completed != 4 || snap.Failed != 2 {
		t.Errorf("Completed/Failed = %d/%d, want 4/2", snap.Completed, snap.Failed)
	}
}

// Three numbers: one never answers, one answers and hangs up, one answers
// and presses a key. The campaign must settle to 2 completed, 1 failed,
// 1 response.
func TestThreeNumberCampaign(t *testing.T) {
	a := newTestAggregator(nil)
	done := make(chan CampaignSnapshot, 4)
	a.OnComplete(func(snap CampaignSnapshot) { done <- snap })

	id := launched(a, 3)

	// All three dials accepted by the PBX.
	a.CallStarted(id)
	a.CallStarted(id)
	a.CallStarted(id)
	a.DispatchFinished(id)

	a.CallFinished(id, false) // no answer
	a.CallFinished(id, true)  // answered, hung up
	a.DTMFResponse(id)        // pressed a key
	a.CallFinished(id, true)

	select {
	case snap := <-done:
		if snap.Completed != 2 || snap.Failed != 1 || snap.DTMFResponses != 1 {
			t.Errorf("completed/failed/responses = %d/%d/%d, want 2/1/1",
				snap.Completed, snap.Failed, snap.DTMFResponses)
		}
		if snap.Active != 0 {
			t.Errorf("Active = %d at completion, want 0", snap.Active)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never fired")
	}

	// A late duplicate terminal event must not fire completion again.
	a.CallFinished(id, true)
	select {
	case <-done:
		t.Fatal("completion fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCompletionWhenDispatchFinishesLast(t *testing.T) {
	a := newTestAggregator(nil)
	done := make(chan CampaignSnapshot, 1)
	a.OnComplete(func(snap CampaignSnapshot) { done <- snap })

	id := launched(a, 2)
	a.CallStarted(id)
	a.CallFinished(id, true)
	a.CallStarted(id)
	a.CallFinished(id, false)

	// Calls drained before the dispatcher reported done.
	a.DispatchFinished(id)

	select {
	case snap := <-done:
		if snap.Completed != 1 || snap.Failed != 1 {
			t.Errorf("completed/failed = %d/%d, want 1/1", snap.Completed, snap.Failed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never fired")
	}
}

func TestOriginateFailedSkipsActive(t *testing.T) {
	a := newTestAggregator(nil)
	id := launched(a, 2)

	a.OriginateFailed(id)

	snap, _ := a.Snapshot(id)
	if snap.Active != 0 {
		t.Errorf("Active = %d, want 0: a rejected originate never became active", snap.Active)
	}
	if snap.Failed != 1 {
		t.Errorf("Failed = %d, want 1", snap.Failed)
	}
}

func TestUnknownCampaignIsNoOp(t *testing.T) {
	a := newTestAggregator(nil)
	id := uuid.New()

	a.CallStarted(id)
	a.CallFinished(id, true)
	a.DTMFResponse(id)
	a.DispatchFinished(id)

	if a.Pause(id) {
		t.Error("Pause on unknown campaign reported success")
	}
	if a.Resume(id) {
		t.Error("Resume on unknown campaign reported success")
	}
	if _, ok := a.Snapshot(id); ok {
		t.Error("Snapshot returned state for unknown campaign")
	}
	if a.Render(id) != "" {
		t.Error("Render returned text for unknown campaign")
	}
	if a.Alive(id) {
		t.Error("Alive reported true for unknown campaign")
	}
}

func TestPauseResume(t *testing.T) {
	a := newTestAggregator(nil)
	id := launched(a, 5)

	if !a.Pause(id) {
		t.Fatal("Pause failed for live campaign")
	}
	if !a.IsPaused(id) {
		t.Error("IsPaused = false after Pause")
	}
	if !a.Resume(id) {
		t.Fatal("Resume failed for live campaign")
	}
	if a.IsPaused(id) {
		t.Error("IsPaused = true after Resume")
	}
}

func TestRemoveDropsState(t *testing.T) {
	a := newTestAggregator(nil)
	id := launched(a, 5)

	a.CallStarted(id)
	a.Remove(id)

	if a.Alive(id) {
		t.Fatal("campaign still alive after Remove")
	}
	// Events for the removed campaign land nowhere.
	a.CallFinished(id, true)
	if _, ok := a.Snapshot(id); ok {
		t.Error("state resurrected by post-remove event")
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name  string
		done  int
		total int
		want  string
	}{
		{"empty", 0, 10, "▱▱▱▱▱▱▱▱▱▱"},
		{"half", 5, 10, "▰▰▰▰▰▱▱▱▱▱"},
		{"full", 10, 10, "▰▰▰▰▰▰▰▰▰▰"},
		{"rounding down", 7, 23, "▰▰▰▱▱▱▱▱▱▱"},
		{"zero total", 3, 0, "▱▱▱▱▱▱▱▱▱▱"},
		{"overshoot clamped", 12, 10, "▰▰▰▰▰▰▰▰▰▰"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProgressBar(tt.done, tt.total, 10); got != tt.want {
				t.Errorf("ProgressBar(%d, %d, 10) = %q, want %q", tt.done, tt.total, got, tt.want)
			}
		})
	}
}

func TestRenderMessage(t *testing.T) {
	a := newTestAggregator(nil)
	start := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return start }

	id := launched(a, 10)
	for i := 0; i < 4; i++ {
		a.CallStarted(id)
	}
	a.CallFinished(id, true)
	a.CallFinished(id, true)
	a.CallFinished(id, false)
	a.DTMFResponse(id)

	a.now = func() time.Time { return start.Add(95 * time.Second) }

	want := "🤖 *Evening wave*\n\n" +
		"📊 *Progress* 30%\n" +
		"▰▰▰▱▱▱▱▱▱▱ (3/10)\n\n" +
		"📞 *Call Stats*\n" +
		"├─ ✅ Completed: 2\n" +
		"├─ 🔄 Active: 1\n" +
		"├─ ❌ Failed: 1\n" +
		"└─ 🔔 DTMF Responses: 1\n\n" +
		"⏱ *Duration:* 1m 35s\n" +
		"⚡ *Status:* 🚀 Running"

	if got := a.Render(id); got != want {
		t.Errorf("Render mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}

	a.Pause(id)
	if got := a.Render(id); !strings.Contains(got, "⏸ Paused") {
		t.Errorf("paused render missing status marker:\n%s", got)
	}
}

func TestProgressEditsAreDebounced(t *testing.T) {
	notifier := newTestNotifier()
	a := newTestAggregator(notifier)
	id := launched(a, 10)

	// First counter change pushes immediately.
	a.CallStarted(id)
	notifier.expectEdit(t)
	waitPushIdle(t, a, id)

	// Subsequent changes inside the edit interval stay quiet.
	a.CallStarted(id)
	a.DTMFResponse(id)
	a.CallFinished(id, true)
	notifier.expectQuiet(t)

	// Pause is operator-visible and pushes regardless.
	a.Pause(id)
	notifier.expectEdit(t)
	waitPushIdle(t, a, id)

	// Explicit pushes bypass the debounce too.
	a.PushProgress(context.Background(), id)
	notifier.expectEdit(t)
}

func TestPushSkippedWithoutMessage(t *testing.T) {
	notifier := newTestNotifier()
	a := newTestAggregator(notifier)

	id := uuid.New()
	a.Launch(LaunchParams{CampaignID: id, Name: "No chat", Total: 3})
	a.CallStarted(id)
	a.PushProgress(context.Background(), id)

	notifier.expectQuiet(t)
}
