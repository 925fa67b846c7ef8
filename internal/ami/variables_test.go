package ami_test

import (
	"strings"
	"testing"

	"autodial_backend/internal/ami"
)

func TestCallVariablesApplyTo(t *testing.T) {
	vars := ami.CallVariables{
		CallID:         "campaign_x_1_2_3",
		TrackingID:     "JKD1.2",
		CampaignID:     "c0ffee",
		SequenceNumber: 2,
		TargetNumber:   "+15551230001",
		CallerID:       "+15550009999",
		ActionID:       "originate_campaign_x_1_2_3",
	}

	wire := string(vars.ApplyTo(ami.NewAction("Originate")).Encode())

	for _, want := range []string{
		"Variable: __CallID=campaign_x_1_2_3\r\n",
		"Variable: __TrackingID=JKD1.2\r\n",
		"Variable: __CampaignID=c0ffee\r\n",
		"Variable: __SequenceNumber=2\r\n",
		"Variable: __OriginalTargetNumber=+15551230001\r\n",
		"Variable: __CallerID=+15550009999\r\n",
		"Variable: __Origin=autodial\r\n",
		"Variable: __ActionID=originate_campaign_x_1_2_3\r\n",
	} {
		if !strings.Contains(wire, want) {
			t.Errorf("wire missing %q:\n%s", want, wire)
		}
	}
}

func TestCallVariablesApplyToSkipsEmpty(t *testing.T) {
	wire := string(ami.CallVariables{CallID: "adhoc_1"}.ApplyTo(ami.NewAction("Originate")).Encode())

	if !strings.Contains(wire, "Variable: __CallID=adhoc_1\r\n") {
		t.Errorf("wire missing call id variable:\n%s", wire)
	}
	if !strings.Contains(wire, "Variable: __Origin=autodial\r\n") {
		t.Errorf("origin must always be stamped:\n%s", wire)
	}
	for _, absent := range []string{"__TrackingID", "__CampaignID", "__SequenceNumber"} {
		if strings.Contains(wire, absent) {
			t.Errorf("empty field %s must be omitted:\n%s", absent, wire)
		}
	}
}

// The PBX strips the inheritance prefix when a variable lands on a channel,
// so events report bare names. ReadCallVariables must see them both as
// ChanVariable pairs and as direct UserEvent headers.
func TestReadCallVariables(t *testing.T) {
	ev := ami.NewEvent(
		"Event", "Newchannel",
		"Uniqueid", "1700000000.42",
		"ChanVariable", "CallID=campaign_x_1_2_3",
		"ChanVariable", "TrackingID=JKD1.2",
		"ChanVariable", "SequenceNumber=2",
	)

	vars := ami.ReadCallVariables(ev)
	if vars.CallID != "campaign_x_1_2_3" {
		t.Errorf("CallID = %q", vars.CallID)
	}
	if vars.TrackingID != "JKD1.2" {
		t.Errorf("TrackingID = %q", vars.TrackingID)
	}
	if vars.SequenceNumber != 2 {
		t.Errorf("SequenceNumber = %d", vars.SequenceNumber)
	}

	userEvent := ami.NewEvent(
		"Event", "UserEvent",
		"UserEvent", "AutoDialResponse",
		"TrackingID", "JKD1.9",
		"CallID", "campaign_y_4_9_5",
	)
	vars = ami.ReadCallVariables(userEvent)
	if vars.TrackingID != "JKD1.9" {
		t.Errorf("direct header TrackingID = %q", vars.TrackingID)
	}
	if vars.CallID != "campaign_y_4_9_5" {
		t.Errorf("direct header CallID = %q", vars.CallID)
	}
}
