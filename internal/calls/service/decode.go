package service

import (
	"autodial_backend/internal/ami"
)

// Correlation carries the identifiers a PBX event exposes for matching it to
// a call record. Any field may be empty; the resolver walks them in a fixed
// order of reliability.
type Correlation struct {
	UniqueID    string
	ChannelName string
	CallID      string // CallID channel variable, inherited by child channels
	TrackingID  string
}

// Correlate returns the event's correlation identifiers. Embedding
// Correlation gives every event variant this method.
func (c Correlation) Correlate() Correlation { return c }

// PBXEvent is the closed set of manager events the engine consumes. Raw
// frames are decoded into these variants once, at the boundary; everything
// past Decode works with typed fields only.
type PBXEvent interface {
	Correlate() Correlation
}

// ChannelCreated reports a new channel entering the dialplan.
type ChannelCreated struct {
	Correlation
	Context     string
	Exten       string
	CallerIDNum string
	StateDesc   string
}

// StateChanged reports a channel state transition (Ringing, Up, ...).
type StateChanged struct {
	Correlation
	State     int
	StateDesc string
}

// DialBegin reports the PBX starting to dial the remote party.
type DialBegin struct {
	Correlation
	DestChannel  string
	DestUniqueID string
	DialString   string
}

// DialEnd reports the outcome of a dial attempt. DialStatus is one of
// ANSWER, BUSY, NOANSWER, CANCEL, CONGESTION or CHANUNAVAIL.
type DialEnd struct {
	Correlation
	DestChannel  string
	DestUniqueID string
	DialStatus   string
	Forward      string
}

// DTMFBegin reports the start of a DTMF digit on a channel.
type DTMFBegin struct {
	Correlation
	Digit     string
	Direction string
}

// DTMFEnd reports the end of a DTMF digit, with its measured duration.
type DTMFEnd struct {
	Correlation
	Digit      string
	Direction  string
	DurationMs int
}

// BridgeEntered reports a channel joining a bridge. The PBX emits one of
// these per leg, all carrying the same bridge id.
type BridgeEntered struct {
	Correlation
	BridgeID   string
	BridgeType string
}

// Hangup reports a channel being torn down.
type Hangup struct {
	Correlation
	Cause     int
	CauseText string
}

// UserEventReceived reports a custom event raised by the IVR dialplan, such
// as AutoDialResponse or KeyPress.
type UserEventReceived struct {
	Correlation
	Name         string
	Pressed      string
	PressedOne   bool
	TargetNumber string
}

// Decode maps a raw manager frame onto its typed variant. Returns false for
// event types the engine does not consume (PeerStatus, VarSet, and the rest
// of the manager chatter).
func Decode(e ami.Event) (PBXEvent, bool) {
	vars := ami.ReadCallVariables(e)
	corr := Correlation{
		UniqueID:    e.Get("Uniqueid"),
		ChannelName: e.Get("Channel"),
		CallID:      vars.CallID,
		TrackingID:  vars.TrackingID,
	}

	switch e.Type() {
	case "Newchannel":
		return ChannelCreated{
			Correlation: corr,
			Context:     e.Get("Context"),
			Exten:       e.Get("Exten"),
			CallerIDNum: e.Get("CallerIDNum"),
			StateDesc:   e.Get("ChannelStateDesc"),
		}, true

	case "Newstate":
		return StateChanged{
			Correlation: corr,
			State:       e.GetInt("ChannelState"),
			StateDesc:   e.Get("ChannelStateDesc"),
		}, true

	case "DialBegin":
		return DialBegin{
			Correlation:  corr,
			DestChannel:  e.Get("DestChannel"),
			DestUniqueID: e.Get("DestUniqueid"),
			DialString:   e.Get("DialString"),
		}, true

	case "DialEnd":
		return DialEnd{
			Correlation:  corr,
			DestChannel:  e.Get("DestChannel"),
			DestUniqueID: e.Get("DestUniqueid"),
			DialStatus:   e.Get("DialStatus"),
			Forward:      e.Get("Forward"),
		}, true

	case "DTMFBegin":
		return DTMFBegin{
			Correlation: corr,
			Digit:       e.Get("Digit"),
			Direction:   e.Get("Direction"),
		}, true

	case "DTMFEnd":
		return DTMFEnd{
			Correlation: corr,
			Digit:       e.Get("Digit"),
			Direction:   e.Get("Direction"),
			DurationMs:  e.GetInt("DurationMs"),
		}, true

	case "BridgeEnter":
		return BridgeEntered{
			Correlation: corr,
			BridgeID:    e.Get("BridgeUniqueid"),
			BridgeType:  e.Get("BridgeType"),
		}, true

	case "Hangup":
		return Hangup{
			Correlation: corr,
			Cause:       e.GetInt("Cause"),
			CauseText:   e.Get("Cause-txt"),
		}, true

	case "UserEvent":
		pressed := e.Get("Pressed")
		yes := e.Get("PressedOne")
		return UserEventReceived{
			Correlation:  corr,
			Name:         e.Get("UserEvent"),
			Pressed:      pressed,
			PressedOne:   yes == "true" || yes == "Yes" || pressed == "1",
			TargetNumber: e.Get("TargetNumber"),
		}, true
	}

	return nil, false
}
