package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// callIDPrefix starts every identifier this system hands to the PBX as a
// channel id, which is how a PBX unique id can be recognized as one of our
// own call ids echoed back.
const callIDPrefix = "campaign_"

// NewCallID builds the globally unique identifier for one outbound call
// attempt. The microsecond fraction keeps ids distinct when several calls
// of one campaign are created within the same second.
func NewCallID(campaignID uuid.UUID, sequence int, now time.Time) string {
	return fmt.Sprintf("%s%s_%d_%d_%d", callIDPrefix, campaignID, now.Unix(), sequence, now.Nanosecond()/1000)
}

// NewTrackingID builds the short operator-facing identifier for a call.
func NewTrackingID(sequence int) string {
	return fmt.Sprintf("JKD1.%d", sequence)
}

// ActionIDFor derives the manager ActionID used to originate a call, so an
// origination response can be traced back to its record.
func ActionIDFor(callID string) string {
	return "originate_" + callID
}

// LooksLikeCallID reports whether a PBX unique id is one of our call ids.
// The originate request pins the channel id to the call id, so the main leg
// of a tracked call reports the call id as its unique id.
func LooksLikeCallID(uniqueID string) bool {
	return strings.HasPrefix(uniqueID, callIDPrefix)
}

// TargetFromChannel extracts the dialed number from a channel name of the
// dial-string form PROTOCOL/<number>@<trunk>. Returns empty string when the
// channel does not follow that form or the middle part is not a number,
// e.g. for endpoint-style names like PJSIP/trunk-one-00000042.
func TargetFromChannel(channel string) string {
	_, rest, found := strings.Cut(channel, "/")
	if !found {
		return ""
	}
	number, _, found := strings.Cut(rest, "@")
	if !found {
		return ""
	}
	if !isDialedNumber(number) {
		return ""
	}
	return number
}

func isDialedNumber(s string) bool {
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
