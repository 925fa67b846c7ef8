package statefeed

import (
	"context"
	"fmt"
	"time"

	"autodial_backend/platform/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const connectGrace = 5 * time.Second

// Publisher is the transport the feed writes to. Satisfied by the paho
// wrapper; tests substitute a recorder.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// MQTTPublisher wraps a paho MQTT client. A nil publisher is valid and
// drops everything.
type MQTTPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher connects to the configured broker, or returns nil when
// no broker is configured. The broker is optional infrastructure: the
// first connect gets a short grace period, after which auto-reconnect
// chases it in the background while states are dropped.
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	if !cfg.IsMQTTEnabled() {
		return nil, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.GetMQTTBrokerURL()).
		SetClientID(cfg.GetMQTTClientID()).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(60 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.WaitTimeout(connectGrace) {
		if err := token.Error(); err != nil {
			client.Disconnect(0)
			return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.GetMQTTBrokerURL(), err)
		}
	}

	return &MQTTPublisher{client: client}, nil
}

func (p *MQTTPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if p == nil {
		return nil
	}
	token := p.client.Publish(topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

func (p *MQTTPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.client.Disconnect(1000)
	return nil
}
