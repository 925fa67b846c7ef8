package notify

import (
	"strings"
	"testing"
	"time"

	"autodial_backend/internal/events"
)

func TestRenderCampaignCompleted(t *testing.T) {
	started := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	text := renderCampaignCompleted(events.CampaignCompleted{
		Name:      "friday wave",
		Total:     10,
		Completed: 7,
		Failed:    3,
		Responses: map[string]int{"2": 1, "1": 4},
		StartedAt: started,
		FinishedAt: started.Add(2*time.Minute + 5*time.Second),
	})

	want := strings.Join([]string{
		"🏁 *Campaign complete: friday wave*",
		"",
		"📊 *Results*",
		"├─ Total: 10",
		"├─ ✅ Completed: 7",
		"├─ ❌ Failed: 3",
		"└─ 📈 Success rate: 70%",
		"",
		"🔔 *Key presses*",
		"├─ 1: 4",
		"└─ 2: 1",
		"",
		"⏱ *Duration:* 2m 5s",
	}, "\n")
	if text != want {
		t.Errorf("summary mismatch:\ngot:\n%s\nwant:\n%s", text, want)
	}
}

func TestRenderCampaignCompletedNoResponses(t *testing.T) {
	text := renderCampaignCompleted(events.CampaignCompleted{Name: "quiet", Total: 2, Failed: 2})
	if strings.Contains(text, "Key presses") {
		t.Errorf("summary should omit the key press section:\n%s", text)
	}
	if !strings.Contains(text, "Success rate: 0%") {
		t.Errorf("summary missing zero success rate:\n%s", text)
	}
}

func TestRenderCallFinished(t *testing.T) {
	tests := []struct {
		name  string
		event events.CallFinished
		want  string
	}{
		{
			name:  "answered",
			event: events.CallFinished{TargetNumber: "+12125550100", Answered: true, DurationSeconds: 42.4},
			want:  "✅ +12125550100 completed (42s)",
		},
		{
			name:  "busy",
			event: events.CallFinished{TargetNumber: "+12125550100", Answered: false, HangupCause: 17},
			want:  "❌ +12125550100 failed (user_busy)",
		},
		{
			name:  "unmapped cause",
			event: events.CallFinished{TargetNumber: "+12125550100", Answered: false, HangupCause: 99},
			want:  "❌ +12125550100 failed (unknown)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderCallFinished(tt.event); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderDTMF(t *testing.T) {
	got := renderDTMF(events.CallDTMFReceived{TargetNumber: "+12125550100", Digit: "3"})
	if got != "🔔 +12125550100 pressed 3" {
		t.Errorf("got %q", got)
	}
}

func TestRenderCampaignStopped(t *testing.T) {
	got := renderCampaignStopped(events.CampaignStopped{Name: "wave", Dialed: 4, Total: 9})
	if got != "🛑 Campaign *wave* stopped (4 of 9 dialed)" {
		t.Errorf("got %q", got)
	}
}

func TestFormatSpan(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{59 * time.Second, "59s"},
		{60 * time.Second, "1m 0s"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
		{-3 * time.Second, "0s"},
	}
	for _, tt := range tests {
		if got := formatSpan(tt.d); got != tt.want {
			t.Errorf("formatSpan(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRenderReportEmail(t *testing.T) {
	started := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	html, err := renderReportEmail(events.CampaignCompleted{
		Name:       "friday wave",
		Total:      10,
		Completed:  7,
		Failed:     3,
		Responses:  map[string]int{"1": 4},
		StartedAt:  started,
		FinishedAt: started.Add(125 * time.Second),
	})
	if err != nil {
		t.Fatalf("renderReportEmail: %v", err)
	}

	for _, fragment := range []string{
		"friday wave",
		"2025-06-02 14:00:00",
		"(2m 5s)",
		"70%",
		"Key 1",
	} {
		if !strings.Contains(html, fragment) {
			t.Errorf("report missing %q", fragment)
		}
	}
}
