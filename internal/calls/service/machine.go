package service

import (
	"time"

	"autodial_backend/internal/ami"
	"autodial_backend/internal/calls/domain"
	"autodial_backend/internal/calls/repository"
)

// effects describes the externally visible consequences of applying one
// event to a call record. The engine acts on them only after the enclosing
// transaction commits, so a rollback produces no counter updates or
// published events.
type effects struct {
	fromStatus    domain.Status
	toStatus      domain.Status
	statusChanged bool
	dtmfDigit     string // non-empty: one DTMF response was recorded
	finished      bool   // the record reached a terminal status just now
	outcome       domain.Outcome
	hangupCause   int
	duration      time.Duration
}

// applyPBXEvent mutates the locked record according to the state machine and
// reports the resulting effects. Terminal records only ever gain metadata:
// their status, digits and timestamps are immutable no matter what arrives
// late. firstBridgeLeg tells the bridge case whether this event won the
// per-bridge claim; later legs of the same bridge are metadata no-ops.
func applyPBXEvent(rec *repository.CallRecord, ev PBXEvent, now time.Time, firstBridgeLeg bool) effects {
	eff := effects{fromStatus: rec.Status, toStatus: rec.Status}

	stampIdentifiers(rec, ev.Correlate())

	switch e := ev.(type) {
	case ChannelCreated:
		applyChannelCreated(rec, e, now, &eff)
	case StateChanged:
		applyStateChanged(rec, e, now, &eff)
	case DialBegin:
		applyDialBegin(rec, e, now, &eff)
	case DialEnd:
		applyDialEnd(rec, e, now, &eff)
	case DTMFBegin:
		applyDTMFBegin(rec, e, now, &eff)
	case DTMFEnd:
		applyDTMFEnd(rec, e, now, &eff)
	case BridgeEntered:
		applyBridgeEntered(rec, e, now, firstBridgeLeg, &eff)
	case Hangup:
		applyHangup(rec, e, now, &eff)
	case UserEventReceived:
		applyUserEvent(rec, e, now, &eff)
	}

	return eff
}

// stampIdentifiers fills in PBX identifiers the record does not have yet.
// Identifiers are write-once: a record keeps the first unique id and channel
// it was matched under.
func stampIdentifiers(rec *repository.CallRecord, corr Correlation) {
	if rec.UniqueID == "" && corr.UniqueID != "" {
		rec.UniqueID = corr.UniqueID
	}
	if rec.ChannelName == "" && corr.ChannelName != "" {
		rec.ChannelName = corr.ChannelName
	}
}

func setStatus(rec *repository.CallRecord, to domain.Status, now time.Time, eff *effects) {
	rec.Status = to
	rec.MergeMetadata(map[string]any{"last_status_update": now})
	eff.toStatus = to
	eff.statusChanged = true
}

func applyChannelCreated(rec *repository.CallRecord, e ChannelCreated, now time.Time, eff *effects) {
	if domain.IsTerminal(rec.Status) {
		rec.MergeMetadata(map[string]any{
			"late_channel": map[string]any{"channel": e.ChannelName, "context": e.Context, "time": now},
		})
		return
	}

	rec.MergeMetadata(map[string]any{
		"asterisk_context": e.Context,
		"asterisk_exten":   e.Exten,
	})

	if domain.InConnectedPhase(rec.Status) {
		return
	}
	rec.MergeMetadata(map[string]any{"connected_time": now})
	setStatus(rec, domain.StatusConnected, now, eff)
}

func applyStateChanged(rec *repository.CallRecord, e StateChanged, now time.Time, eff *effects) {
	if domain.IsTerminal(rec.Status) {
		return
	}

	// Channel states: 4 Ring, 5 Ringing, 6 Up.
	switch e.State {
	case 4, 5:
		if rec.Status == domain.StatusRinging || domain.InConnectedPhase(rec.Status) {
			return
		}
		rec.MergeMetadata(map[string]any{"ring_time": now})
		setStatus(rec, domain.StatusRinging, now, eff)
	case 6:
		if domain.InConnectedPhase(rec.Status) {
			return
		}
		rec.MergeMetadata(map[string]any{
			"connected_time": now,
			"answer_time":    now,
		})
		setStatus(rec, domain.StatusConnected, now, eff)
	}
}

func applyDialBegin(rec *repository.CallRecord, e DialBegin, now time.Time, eff *effects) {
	if domain.IsTerminal(rec.Status) {
		return
	}

	rec.MergeMetadata(map[string]any{
		"dial_begin": map[string]any{"dest_channel": e.DestChannel, "dial_string": e.DialString, "time": now},
	})

	switch rec.Status {
	case domain.StatusQueued, domain.StatusInitiating, domain.StatusSending:
		setStatus(rec, domain.StatusDialing, now, eff)
	}
}

func applyDialEnd(rec *repository.CallRecord, e DialEnd, now time.Time, eff *effects) {
	rec.MergeMetadata(map[string]any{
		"dial_end": map[string]any{"dial_status": e.DialStatus, "dest_channel": e.DestChannel, "time": now},
	})
	if domain.IsTerminal(rec.Status) {
		return
	}

	to, ok := domain.StatusForDialResult(e.DialStatus)
	if !ok {
		return
	}

	if to == domain.StatusAnswered {
		// Do not step backwards if the call already progressed past answer.
		switch rec.Status {
		case domain.StatusAnswered, domain.StatusBridged, domain.StatusDTMFStarted, domain.StatusDTMFProcessed:
			return
		}
		rec.MergeMetadata(map[string]any{"answer_time": now})
		setStatus(rec, domain.StatusAnswered, now, eff)
		return
	}

	// A dial failure after the call rang or connected means the PBX and the
	// carrier disagreed about this call. Keep the failure but flag it.
	if rec.Status == domain.StatusRinging || domain.InConnectedPhase(rec.Status) {
		rec.MergeMetadata(map[string]any{"anomalous_outcome": true})
	}

	rec.EndTime = &now
	setStatus(rec, to, now, eff)
	eff.finished = true
	eff.outcome = domain.OutcomeFailed
	eff.duration = callDuration(rec, now)
}

func applyDTMFBegin(rec *repository.CallRecord, e DTMFBegin, now time.Time, eff *effects) {
	if e.Direction != "" && e.Direction != "Received" {
		return
	}
	if domain.IsTerminal(rec.Status) {
		appendMetadataList(rec, "late_dtmf", map[string]any{"digit": e.Digit, "time": now})
		return
	}

	rec.DTMFDigits += e.Digit
	appendMetadataList(rec, "dtmf_history", map[string]any{"digit": e.Digit, "time": now})
	if rec.Status != domain.StatusDTMFStarted {
		setStatus(rec, domain.StatusDTMFStarted, now, eff)
	}
	eff.dtmfDigit = e.Digit
}

func applyDTMFEnd(rec *repository.CallRecord, e DTMFEnd, now time.Time, eff *effects) {
	if e.Direction != "" && e.Direction != "Received" {
		return
	}
	if domain.IsTerminal(rec.Status) {
		return
	}

	rec.MergeMetadata(map[string]any{"last_dtmf_duration_ms": e.DurationMs})
	if rec.Status != domain.StatusDTMFProcessed {
		setStatus(rec, domain.StatusDTMFProcessed, now, eff)
	}
}

func applyBridgeEntered(rec *repository.CallRecord, e BridgeEntered, now time.Time, firstBridgeLeg bool, eff *effects) {
	if !firstBridgeLeg {
		return
	}
	if domain.IsTerminal(rec.Status) {
		rec.MergeMetadata(map[string]any{
			"late_bridge": map[string]any{"bridge_id": e.BridgeID, "time": now},
		})
		return
	}

	rec.MergeMetadata(map[string]any{
		"bridge_id":   e.BridgeID,
		"bridge_time": now,
	})
	switch rec.Status {
	case domain.StatusBridged, domain.StatusDTMFStarted, domain.StatusDTMFProcessed:
		return
	}
	setStatus(rec, domain.StatusBridged, now, eff)
}

func applyHangup(rec *repository.CallRecord, e Hangup, now time.Time, eff *effects) {
	causeText := e.CauseText
	if causeText == "" {
		causeText = ami.CauseName(e.Cause)
	}
	rec.MergeMetadata(map[string]any{
		"hangup": map[string]any{"cause": e.Cause, "cause_txt": causeText, "time": now},
	})
	if domain.IsTerminal(rec.Status) {
		// Hangups routinely trail a failed dial; the record already settled.
		return
	}

	duration := callDuration(rec, now)
	outcome := domain.ClassifyHangup(rec.Status, duration)

	rec.EndTime = &now
	rec.MergeMetadata(map[string]any{
		"duration_seconds": duration.Seconds(),
		"call_answered":    outcome == domain.OutcomeAnswered,
	})
	setStatus(rec, domain.StatusCompleted, now, eff)
	eff.finished = true
	eff.outcome = outcome
	eff.hangupCause = e.Cause
	eff.duration = duration
}

func applyUserEvent(rec *repository.CallRecord, e UserEventReceived, now time.Time, eff *effects) {
	switch e.Name {
	case "AutoDialResponse":
		rec.MergeMetadata(map[string]any{
			"user_response": map[string]any{
				"pressed_one":   e.PressedOne,
				"target_number": e.TargetNumber,
				"time":          now,
			},
		})
		if e.PressedOne {
			creditDialplanResponse(rec, "1", now, eff)
		}
	case "KeyPress":
		appendMetadataList(rec, "key_presses", map[string]any{"digit": e.Pressed, "time": now})
		if e.Pressed == "1" {
			creditDialplanResponse(rec, e.Pressed, now, eff)
		}
	default:
		appendMetadataList(rec, "user_events", map[string]any{"name": e.Name, "time": now})
	}
}

// creditDialplanResponse counts a response the IVR dialplan reported itself.
// The DTMF listeners are the primary capture path; a dialplan report only
// counts when no digit reached the record through them, so one key press
// never tallies twice.
func creditDialplanResponse(rec *repository.CallRecord, digit string, now time.Time, eff *effects) {
	if rec.DTMFDigits != "" || domain.IsTerminal(rec.Status) {
		return
	}

	rec.DTMFDigits = digit
	appendMetadataList(rec, "dtmf_history", map[string]any{"digit": digit, "source": "dialplan", "time": now})
	if rec.Status != domain.StatusDTMFProcessed {
		setStatus(rec, domain.StatusDTMFProcessed, now, eff)
	}
	eff.dtmfDigit = digit
}

// callDuration measures from origination when the dispatcher recorded one,
// otherwise from record creation. Unknown-origin records have no start time.
func callDuration(rec *repository.CallRecord, now time.Time) time.Duration {
	start := rec.CreatedAt
	if rec.StartTime != nil {
		start = *rec.StartTime
	}
	return now.Sub(start)
}

// appendMetadataList appends an entry to a list-valued metadata key. Values
// read back from storage decode as []any, so both shapes are handled.
func appendMetadataList(rec *repository.CallRecord, key string, entry map[string]any) {
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	list, _ := rec.Metadata[key].([]any)
	rec.Metadata[key] = append(list, entry)
}
