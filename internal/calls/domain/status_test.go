package domain

import (
	"testing"
	"time"
)

func TestIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusError, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !IsTerminal(s) {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	open := []Status{
		StatusQueued, StatusInitiating, StatusSending, StatusDialing, StatusRinging,
		StatusConnected, StatusAnswered, StatusBridged, StatusDTMFStarted,
		StatusDTMFProcessed, StatusUnknownOrigin, StatusUnknownDTMF,
	}
	for _, s := range open {
		if IsTerminal(s) {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestClassifyHangup(t *testing.T) {
	cases := []struct {
		name     string
		status   Status
		duration time.Duration
		want     Outcome
	}{
		{"connected short call", StatusConnected, 2 * time.Second, OutcomeAnswered},
		{"bridged zero duration", StatusBridged, 0, OutcomeAnswered},
		{"dtmf processed", StatusDTMFProcessed, 30 * time.Second, OutcomeAnswered},
		{"long call without up event", StatusDialing, 45 * time.Second, OutcomeAnswered},
		{"short dialing call", StatusDialing, 3 * time.Second, OutcomeFailed},
		{"threshold is exclusive", StatusRinging, 10 * time.Second, OutcomeFailed},
		{"just above threshold", StatusRinging, 10*time.Second + time.Millisecond, OutcomeAnswered},
		{"sending never progressed", StatusSending, 0, OutcomeFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyHangup(tc.status, tc.duration); got != tc.want {
				t.Errorf("ClassifyHangup(%s, %s) = %s, want %s", tc.status, tc.duration, got, tc.want)
			}
		})
	}
}

func TestStatusForDialResult(t *testing.T) {
	cases := []struct {
		dialStatus string
		want       Status
		ok         bool
	}{
		{"ANSWER", StatusAnswered, true},
		{"NOANSWER", StatusFailed, true},
		{"BUSY", StatusFailed, true},
		{"CONGESTION", StatusFailed, true},
		{"CHANUNAVAIL", StatusFailed, true},
		{"CANCEL", StatusCancelled, true},
		{"RINGING", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := StatusForDialResult(tc.dialStatus)
		if got != tc.want || ok != tc.ok {
			t.Errorf("StatusForDialResult(%q) = (%s, %v), want (%s, %v)", tc.dialStatus, got, ok, tc.want, tc.ok)
		}
	}
}
