package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"autodial_backend/internal/ami"
	"autodial_backend/internal/calls/domain"
	"autodial_backend/internal/calls/repository"
	"autodial_backend/platform/config"
)

// Dial-plan fallbacks when the configuration leaves them unset.
const (
	fallbackDialContext = "autodial-ivr"
	fallbackDialExten   = "s"
	fallbackDialTimeout = 45 * time.Second
)

// DialPlan overrides the dialplan entry an originate lands in. Zero fields
// fall through to the configured defaults.
type DialPlan struct {
	Context  string
	Exten    string
	Priority int
}

// RoutePlans resolves a record's route name to its dial plan. Satisfied by an
// adapter over the route table; nil means every call uses the defaults.
type RoutePlans interface {
	PlanFor(name string) (DialPlan, bool)
}

// AMIOriginator submits Originate actions over the manager connection.
type AMIOriginator struct {
	client *ami.Client
	cfg    config.OriginateConfig
	routes RoutePlans
}

func NewAMIOriginator(client *ami.Client, cfg config.OriginateConfig, routes RoutePlans) *AMIOriginator {
	return &AMIOriginator{client: client, cfg: cfg, routes: routes}
}

func (o *AMIOriginator) Originate(ctx context.Context, rec repository.CallRecord) error {
	resp, err := o.client.Send(ctx, BuildOriginate(rec, o.cfg, o.planFor(rec)))
	if err != nil {
		return err
	}
	if !resp.Success() {
		msg := resp.Get("Message")
		if msg == "" {
			msg = "originate refused"
		}
		return fmt.Errorf("pbx rejected originate: %s", msg)
	}
	return nil
}

func (o *AMIOriginator) planFor(rec repository.CallRecord) DialPlan {
	if o.routes == nil || rec.RouteName == "" {
		return DialPlan{}
	}
	plan, _ := o.routes.PlanFor(rec.RouteName)
	return plan
}

var _ Originator = (*AMIOriginator)(nil)

// BuildOriginate assembles the async Originate action for one call record.
// ChannelId pins the PBX unique id of the main leg to the call id, and the
// inherited channel variables let every event on the call (and its dial
// legs) carry the identifiers back.
func BuildOriginate(rec repository.CallRecord, cfg config.OriginateConfig, plan DialPlan) *ami.Action {
	trunk := rec.Trunk
	if trunk == "" {
		trunk = cfg.GetDefaultTrunk()
	}
	callerID := rec.CallerID
	if callerID == "" {
		callerID = cfg.GetDefaultCallerID()
	}
	dialContext := plan.Context
	if dialContext == "" {
		dialContext = cfg.GetDialContext()
	}
	if dialContext == "" {
		dialContext = fallbackDialContext
	}
	exten := plan.Exten
	if exten == "" {
		exten = cfg.GetDialExtension()
	}
	if exten == "" {
		exten = fallbackDialExten
	}
	priority := plan.Priority
	if priority <= 0 {
		priority = cfg.GetDialPriority()
	}
	if priority <= 0 {
		priority = 1
	}
	timeout := cfg.GetDialTimeout()
	if timeout <= 0 {
		timeout = fallbackDialTimeout
	}

	actionID := rec.ActionID
	if actionID == "" {
		actionID = domain.ActionIDFor(rec.CallID)
	}

	action := ami.NewAction("Originate").
		Set("ActionID", actionID).
		Set("Channel", fmt.Sprintf("PJSIP/%s@%s", rec.TargetNumber, trunk)).
		Set("Context", dialContext).
		Set("Exten", exten).
		Set("Priority", strconv.Itoa(priority)).
		Set("CallerID", fmt.Sprintf("%q <%s>", callerID, callerID)).
		Set("Timeout", strconv.FormatInt(timeout.Milliseconds(), 10)).
		Set("Async", "true").
		Set("ChannelId", rec.CallID)

	vars := ami.CallVariables{
		CallID:         rec.CallID,
		TrackingID:     rec.TrackingID,
		SequenceNumber: rec.SequenceNumber,
		TargetNumber:   rec.TargetNumber,
		CallerID:       callerID,
		ActionID:       actionID,
	}
	if rec.CampaignID != nil {
		vars.CampaignID = rec.CampaignID.String()
	}
	return vars.ApplyTo(action)
}
