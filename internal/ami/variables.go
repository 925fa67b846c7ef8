package ami

import "strconv"

// Channel variable names carried by every originated call. Encode writes
// them with the "__" inheritance prefix so the PBX copies them to dialed
// legs; the prefix is stripped when the variable lands on a channel, so
// decode reads the bare names. Both sides share these constants.
const (
	varCallID     = "CallID"
	varTrackingID = "TrackingID"
	varCampaignID = "CampaignID"
	varSequence   = "SequenceNumber"
	varTarget     = "OriginalTargetNumber"
	varCallerID   = "CallerID"
	varOrigin     = "Origin"
	varActionID   = "ActionID"
)

// OriginAutodial is the Origin variable value marking channels this dialer
// created.
const OriginAutodial = "autodial"

// CallVariables is the fixed set of channel variables an Originate carries.
// All variable encoding and decoding goes through this struct; nothing else
// builds Variable headers by hand.
type CallVariables struct {
	CallID         string
	TrackingID     string
	CampaignID     string
	SequenceNumber int
	TargetNumber   string
	CallerID       string
	ActionID       string
}

// ApplyTo appends the variables to an action as inherited Variable headers.
// Empty fields are omitted; Origin is always stamped.
func (v CallVariables) ApplyTo(a *Action) *Action {
	set := func(name, value string) {
		if value != "" {
			a.Set("Variable", "__"+name+"="+value)
		}
	}
	set(varCallID, v.CallID)
	set(varTrackingID, v.TrackingID)
	set(varCampaignID, v.CampaignID)
	if v.SequenceNumber > 0 {
		set(varSequence, strconv.Itoa(v.SequenceNumber))
	}
	set(varTarget, v.TargetNumber)
	set(varCallerID, v.CallerID)
	set(varOrigin, OriginAutodial)
	set(varActionID, v.ActionID)
	return a
}

// ReadCallVariables extracts the call variables an event carries, whether as
// direct headers (UserEvent payloads) or ChanVariable pairs.
func ReadCallVariables(e Event) CallVariables {
	seq, _ := strconv.Atoi(e.Var(varSequence))
	return CallVariables{
		CallID:         e.Var(varCallID),
		TrackingID:     e.Var(varTrackingID),
		CampaignID:     e.Var(varCampaignID),
		SequenceNumber: seq,
		TargetNumber:   e.Var(varTarget),
		CallerID:       e.Var(varCallerID),
		ActionID:       e.Var(varActionID),
	}
}
