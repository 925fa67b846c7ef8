package ami_test

import (
	"strings"
	"testing"

	"autodial_backend/internal/ami"
)

func TestActionEncode(t *testing.T) {
	action := ami.NewAction("Originate").
		Set("ActionID", "originate_campaign_x_1_2_3").
		Set("Channel", "PJSIP/15551230001@trunk-one").
		Set("Variable", "__CallID=campaign_x_1_2_3").
		Set("Variable", "__TrackingID=JKD1.1")

	wire := string(action.Encode())

	if !strings.HasPrefix(wire, "Action: Originate\r\n") {
		t.Errorf("wire does not start with Action header: %q", wire)
	}
	if !strings.HasSuffix(wire, "\r\n\r\n") {
		t.Errorf("wire does not end with blank line: %q", wire)
	}
	if got := strings.Count(wire, "Variable: "); got != 2 {
		t.Errorf("expected 2 Variable headers, got %d", got)
	}

	// Header order is preserved on the wire.
	callIDIdx := strings.Index(wire, "__CallID=")
	trackingIdx := strings.Index(wire, "__TrackingID=")
	if callIDIdx < 0 || trackingIdx < 0 || callIDIdx > trackingIdx {
		t.Errorf("variable order not preserved: %q", wire)
	}
}

func TestActionAccessors(t *testing.T) {
	action := ami.NewAction("Ping")
	if action.ActionID() != "" {
		t.Errorf("unset ActionID = %q", action.ActionID())
	}
	action.Set("ActionID", "ping-1")
	if action.ActionID() != "ping-1" {
		t.Errorf("ActionID = %q", action.ActionID())
	}
	if action.Get("Action") != "Ping" {
		t.Errorf("Get(Action) = %q", action.Get("Action"))
	}
	if action.Get("Missing") != "" {
		t.Errorf("Get(Missing) = %q", action.Get("Missing"))
	}
}
