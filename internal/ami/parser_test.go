package ami_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autodial_backend/internal/ami"
)

const fixtureCallID = "campaign_b51660e8-1f6d-4c09-8d28-3a79fd3a2f41_1722470400_1_482910"

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("reading fixture %s: %v", name, err)
	}
	return data
}

func TestParseAutodialAnswered(t *testing.T) {
	events := ami.ParseBytes(loadFixture(t, "autodial-answered.raw"))

	if len(events) != 10 {
		t.Fatalf("expected 10 events, got %d", len(events))
	}

	types := map[string]int{}
	for _, e := range events {
		types[e.Type()]++
	}
	for evtType, want := range map[string]int{
		"Newchannel":  1,
		"Newstate":    2,
		"DialBegin":   1,
		"DialEnd":     1,
		"BridgeEnter": 1,
		"DTMFBegin":   1,
		"DTMFEnd":     1,
		"UserEvent":   1,
		"Hangup":      1,
	} {
		if types[evtType] != want {
			t.Errorf("expected %d %s events, got %d", want, evtType, types[evtType])
		}
	}

	first := events[0]
	if first.Get("Channel") != "PJSIP/15551230001-00000042" {
		t.Errorf("unexpected Channel %q", first.Get("Channel"))
	}
	if first.Get("Uniqueid") != fixtureCallID {
		t.Errorf("unexpected Uniqueid %q", first.Get("Uniqueid"))
	}
	if first.Get("Context") != "autodial-ivr" {
		t.Errorf("unexpected Context %q", first.Get("Context"))
	}

	// Every frame carries the CallID channel variable.
	for i, e := range events {
		if e.Var("CallID") != fixtureCallID {
			t.Errorf("event %d: Var(CallID) = %q", i, e.Var("CallID"))
		}
	}

	last := events[len(events)-1]
	if last.Type() != "Hangup" {
		t.Fatalf("expected final Hangup, got %q", last.Type())
	}
	if last.GetInt("Cause") != 16 {
		t.Errorf("expected Cause=16, got %d", last.GetInt("Cause"))
	}
	if last.Get("Cause-txt") != "Normal Clearing" {
		t.Errorf("unexpected Cause-txt %q", last.Get("Cause-txt"))
	}
}

func TestParseUserEventHeaders(t *testing.T) {
	events := ami.ParseBytes(loadFixture(t, "autodial-answered.raw"))

	var user ami.Event
	for _, e := range events {
		if e.Type() == "UserEvent" {
			user = e
		}
	}
	if user.Get("UserEvent") != "AutoDialResponse" {
		t.Fatalf("expected AutoDialResponse, got %q", user.Get("UserEvent"))
	}
	if user.Get("TrackingID") != "JKD1.1" {
		t.Errorf("unexpected TrackingID %q", user.Get("TrackingID"))
	}
	if user.Var("TrackingID") != "JKD1.1" {
		t.Errorf("Var should fall back to direct headers, got %q", user.Var("TrackingID"))
	}
}

func TestParseEmptyInput(t *testing.T) {
	if events := ami.ParseBytes(nil); len(events) != 0 {
		t.Errorf("expected 0 events from empty input, got %d", len(events))
	}
}

func TestParseBannerOnly(t *testing.T) {
	events := ami.ParseBytes([]byte("Asterisk Call Manager/7.0.3\r\n\r\n"))
	if len(events) != 0 {
		t.Errorf("expected 0 events from banner only, got %d", len(events))
	}
}

func TestParseNoTrailingBlankLine(t *testing.T) {
	events := ami.ParseBytes([]byte("Event: Final\r\nKey: Value"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type() != "Final" {
		t.Errorf("expected Final, got %q", events[0].Type())
	}
}

func TestParserStreaming(t *testing.T) {
	input := "Event: First\r\nKey: Value\r\n\r\nEvent: Second\r\nKey: Other\r\n\r\n"
	p := ami.NewParser(strings.NewReader(input))

	evt, ok := p.Next()
	if !ok || evt.Type() != "First" {
		t.Fatalf("expected First, got %q ok=%v", evt.Type(), ok)
	}
	evt, ok = p.Next()
	if !ok || evt.Type() != "Second" {
		t.Fatalf("expected Second, got %q ok=%v", evt.Type(), ok)
	}
	if _, ok := p.Next(); ok {
		t.Error("expected stream end")
	}
}

func TestEventAccessors(t *testing.T) {
	evt := ami.NewEvent(
		"Event", "Hangup",
		"Cause", "16",
		"Channel", "PJSIP/15551230001-00000042",
		"ChanVariable", "CallID=campaign_x_1_2_3",
		"ChanVariable", "TrackingID=JKD1.7",
	)

	if evt.Type() != "Hangup" {
		t.Errorf("Type() = %q", evt.Type())
	}
	if evt.GetInt("Cause") != 16 {
		t.Errorf("GetInt(Cause) = %d", evt.GetInt("Cause"))
	}
	if evt.GetInt("Channel") != 0 {
		t.Errorf("GetInt on non-numeric = %d", evt.GetInt("Channel"))
	}
	if evt.Get("Missing") != "" {
		t.Errorf("Get(Missing) = %q", evt.Get("Missing"))
	}
	if evt.Var("CallID") != "campaign_x_1_2_3" {
		t.Errorf("Var(CallID) = %q", evt.Var("CallID"))
	}
	if evt.Var("TrackingID") != "JKD1.7" {
		t.Errorf("Var(TrackingID) = %q", evt.Var("TrackingID"))
	}
	if evt.Var("CampaignID") != "" {
		t.Errorf("Var(CampaignID) = %q", evt.Var("CampaignID"))
	}
	if evt.IsResponse() {
		t.Error("event misclassified as response")
	}

	resp := ami.NewEvent("Response", "Success", "ActionID", "a1", "Message", "Authentication accepted")
	if !resp.IsResponse() || !resp.Success() {
		t.Error("expected successful response")
	}
	if resp.ActionID() != "a1" {
		t.Errorf("ActionID() = %q", resp.ActionID())
	}

	errResp := ami.NewEvent("Response", "Error", "Message", "Permission denied")
	if !errResp.IsResponse() || errResp.Success() {
		t.Error("expected error response")
	}
}

func TestCauseName(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{16, "normal_clearing"},
		{17, "user_busy"},
		{18, "no_answer"},
		{19, "no_answer"},
		{34, "congestion"},
		{127, "interworking"},
		{99, "unknown"},
	}
	for _, tc := range cases {
		if got := ami.CauseName(tc.code); got != tc.want {
			t.Errorf("CauseName(%d) = %q, want %q", tc.code, got, tc.want)
		}
	}
}
