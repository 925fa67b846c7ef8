package dispatch

import (
	"strings"
	"testing"
	"time"

	"autodial_backend/internal/calls/domain"
	"autodial_backend/internal/calls/repository"

	"github.com/google/uuid"
)

type testOriginateConfig struct{}

func (testOriginateConfig) GetDialContext() string        { return "campaign-ivr" }
func (testOriginateConfig) GetDialExtension() string      { return "start" }
func (testOriginateConfig) GetDialPriority() int          { return 2 }
func (testOriginateConfig) GetDialTimeout() time.Duration { return 30 * time.Second }
func (testOriginateConfig) GetDefaultTrunk() string       { return "default-trunk" }
func (testOriginateConfig) GetDefaultCallerID() string    { return "+15550009999" }

type zeroOriginateConfig struct{}

func (zeroOriginateConfig) GetDialContext() string        { return "" }
func (zeroOriginateConfig) GetDialExtension() string      { return "" }
func (zeroOriginateConfig) GetDialPriority() int          { return 0 }
func (zeroOriginateConfig) GetDialTimeout() time.Duration { return 0 }
func (zeroOriginateConfig) GetDefaultTrunk() string       { return "" }
func (zeroOriginateConfig) GetDefaultCallerID() string    { return "" }

func variables(encoded string) map[string]string {
	vars := make(map[string]string)
	for _, line := range strings.Split(encoded, "\r\n") {
		rest, ok := strings.CutPrefix(line, "Variable: ")
		if !ok {
			continue
		}
		if name, value, found := strings.Cut(rest, "="); found {
			vars[name] = value
		}
	}
	return vars
}

func TestBuildOriginate(t *testing.T) {
	campaignID := uuid.New()
	callID := domain.NewCallID(campaignID, 7, time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC))
	rec := repository.CallRecord{
		CallID:         callID,
		TrackingID:     "JKD1.7",
		ActionID:       domain.ActionIDFor(callID),
		CampaignID:     &campaignID,
		SequenceNumber: 7,
		TargetNumber:   "+15551234567",
		CallerID:       "+15550001111",
		Trunk:          "trunk-a",
	}

	action := BuildOriginate(rec, testOriginateConfig{}, DialPlan{})

	want := map[string]string{
		"Action":    "Originate",
		"ActionID":  "originate_" + callID,
		"Channel":   "PJSIP/+15551234567@trunk-a",
		"Context":   "campaign-ivr",
		"Exten":     "start",
		"Priority":  "2",
		"CallerID":  `"+15550001111" <+15550001111>`,
		"Timeout":   "30000",
		"Async":     "true",
		"ChannelId": callID,
	}
	for key, value := range want {
		if got := action.Get(key); got != value {
			t.Errorf("%s = %q, want %q", key, got, value)
		}
	}

	vars := variables(string(action.Encode()))
	wantVars := map[string]string{
		"__CallID":               callID,
		"__TrackingID":           "JKD1.7",
		"__SequenceNumber":       "7",
		"__OriginalTargetNumber": "+15551234567",
		"__CallerID":             "+15550001111",
		"__CampaignID":           campaignID.String(),
		"__Origin":               "autodial",
		"__ActionID":             "originate_" + callID,
	}
	for name, value := range wantVars {
		if got := vars[name]; got != value {
			t.Errorf("variable %s = %q, want %q", name, got, value)
		}
	}
}

func TestBuildOriginateFallbacks(t *testing.T) {
	rec := repository.CallRecord{
		CallID:         "unknown_test_1",
		SequenceNumber: 1,
		TargetNumber:   "+15551234567",
	}

	action := BuildOriginate(rec, testOriginateConfig{}, DialPlan{})
	if got := action.Get("Channel"); got != "PJSIP/+15551234567@default-trunk" {
		t.Errorf("Channel = %q, want config default trunk", got)
	}
	if got := action.Get("CallerID"); got != `"+15550009999" <+15550009999>` {
		t.Errorf("CallerID = %q, want config default caller id", got)
	}
	if got := action.Get("ActionID"); got != "originate_unknown_test_1" {
		t.Errorf("ActionID = %q, want derived from call id", got)
	}

	action = BuildOriginate(rec, zeroOriginateConfig{}, DialPlan{})
	if got := action.Get("Context"); got != "autodial-ivr" {
		t.Errorf("Context = %q, want built-in fallback", got)
	}
	if got := action.Get("Exten"); got != "s" {
		t.Errorf("Exten = %q, want built-in fallback", got)
	}
	if got := action.Get("Priority"); got != "1" {
		t.Errorf("Priority = %q, want 1", got)
	}
	if got := action.Get("Timeout"); got != "45000" {
		t.Errorf("Timeout = %q, want 45000", got)
	}

	vars := variables(string(action.Encode()))
	if _, ok := vars["__CampaignID"]; ok {
		t.Error("record without campaign must not set __CampaignID")
	}
}

func TestBuildOriginateRoutePlan(t *testing.T) {
	rec := repository.CallRecord{
		CallID:         "unknown_test_2",
		SequenceNumber: 1,
		TargetNumber:   "+15551234567",
		RouteName:      "survey",
	}

	plan := DialPlan{Context: "survey-ivr", Exten: "menu", Priority: 3}
	action := BuildOriginate(rec, testOriginateConfig{}, plan)
	if got := action.Get("Context"); got != "survey-ivr" {
		t.Errorf("Context = %q, want route override", got)
	}
	if got := action.Get("Exten"); got != "menu" {
		t.Errorf("Exten = %q, want route override", got)
	}
	if got := action.Get("Priority"); got != "3" {
		t.Errorf("Priority = %q, want route override", got)
	}

	// Partial plans override only what they set.
	action = BuildOriginate(rec, testOriginateConfig{}, DialPlan{Context: "survey-ivr"})
	if got := action.Get("Exten"); got != "start" {
		t.Errorf("Exten = %q, want config value", got)
	}
	if got := action.Get("Priority"); got != "2" {
		t.Errorf("Priority = %q, want config value", got)
	}
}
