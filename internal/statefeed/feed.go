// Package statefeed streams call state transitions to an MQTT broker so
// external consumers (wallboards, recorders) can follow live calls
// without touching the API. The feed is fire-and-forget: a broken broker
// never slows down call processing.
package statefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"autodial_backend/internal/events"
	"autodial_backend/platform/config"
	"autodial_backend/platform/logger"
)

// Feed subscribes to call state events and publishes one JSON message per
// transition on <prefix>/calls/<callID>/state.
type Feed struct {
	pub    Publisher
	prefix string
	log    *logger.Logger
}

// NewFeed creates the feed, or nil when there is no publisher to write to.
func NewFeed(pub Publisher, cfg config.MQTTConfig, log *logger.Logger) *Feed {
	if pub == nil {
		return nil
	}
	prefix := cfg.GetMQTTTopicPrefix()
	if prefix == "" {
		prefix = "dialer"
	}
	return &Feed{pub: pub, prefix: prefix, log: log}
}

// RegisterHandlers subscribes the feed to call state transitions.
func (f *Feed) RegisterHandlers(bus events.Bus) {
	if f == nil {
		return
	}
	bus.Subscribe(events.CallStateChanged{}.EventName(), f)
	f.log.Info("state feed registered", "topic_prefix", f.prefix)
}

// Handle publishes one state transition. Broker errors are logged and
// swallowed; a down broker must not flood the bus error log.
func (f *Feed) Handle(ctx context.Context, event events.Event) error {
	e, ok := event.(events.CallStateChanged)
	if !ok {
		return nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal state payload: %w", err)
	}

	topic := fmt.Sprintf("%s/calls/%s/state", f.prefix, e.CallID)
	if err := f.pub.Publish(ctx, topic, payload); err != nil {
		f.log.Warn("state feed publish failed", "topic", topic, "error", err.Error())
	}
	return nil
}
