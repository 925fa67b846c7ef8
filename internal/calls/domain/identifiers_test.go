package domain

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewCallID(t *testing.T) {
	campaignID := uuid.MustParse("b51660e8-1f6d-4c09-8d28-3a79fd3a2f41")
	now := time.Unix(1722470400, 482910*1000)

	callID := NewCallID(campaignID, 7, now)

	want := fmt.Sprintf("campaign_%s_1722470400_7_482910", campaignID)
	if callID != want {
		t.Errorf("NewCallID = %q, want %q", callID, want)
	}
	if !LooksLikeCallID(callID) {
		t.Error("generated call id not recognized by LooksLikeCallID")
	}
}

func TestNewCallIDDistinctWithinSecond(t *testing.T) {
	campaignID := uuid.New()
	base := time.Unix(1722470400, 0)

	a := NewCallID(campaignID, 1, base.Add(100*time.Microsecond))
	b := NewCallID(campaignID, 1, base.Add(200*time.Microsecond))
	if a == b {
		t.Errorf("expected distinct call ids, both %q", a)
	}
}

func TestNewTrackingID(t *testing.T) {
	if got := NewTrackingID(12); got != "JKD1.12" {
		t.Errorf("NewTrackingID(12) = %q", got)
	}
}

func TestActionIDFor(t *testing.T) {
	callID := "campaign_x_1_2_3"
	if got := ActionIDFor(callID); got != "originate_campaign_x_1_2_3" {
		t.Errorf("ActionIDFor = %q", got)
	}
}

func TestLooksLikeCallID(t *testing.T) {
	if LooksLikeCallID("1722470400.42") {
		t.Error("PBX-style unique id misidentified as call id")
	}
	if !LooksLikeCallID("campaign_abc_1_2_3") {
		t.Error("call id not recognized")
	}
}

func TestTargetFromChannel(t *testing.T) {
	cases := []struct {
		channel string
		want    string
	}{
		{"PJSIP/+15551234567@trunkA", "+15551234567"},
		{"PJSIP/15551230001@trunk-one", "15551230001"},
		{"SIP/12345@gateway", "12345"},
		{"PJSIP/trunk-one-00000042", ""}, // endpoint-style name, no dial string
		{"PJSIP/abc@trunk", ""},          // not a number
		{"PJSIP/+@trunk", ""},
		{"garbage", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := TargetFromChannel(tc.channel); got != tc.want {
			t.Errorf("TargetFromChannel(%q) = %q, want %q", tc.channel, got, tc.want)
		}
	}
}

func TestCallIDFieldLayout(t *testing.T) {
	campaignID := uuid.New()
	callID := NewCallID(campaignID, 3, time.Now())

	parts := strings.Split(callID, "_")
	if len(parts) != 5 {
		t.Fatalf("expected 5 underscore-separated fields, got %d (%q)", len(parts), callID)
	}
	if parts[0] != "campaign" {
		t.Errorf("unexpected prefix %q", parts[0])
	}
	if parts[1] != campaignID.String() {
		t.Errorf("campaign field = %q, want %q", parts[1], campaignID)
	}
	if parts[3] != "3" {
		t.Errorf("sequence field = %q, want 3", parts[3])
	}
}
