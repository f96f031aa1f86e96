package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hivewatch/hivewatch/updater/internal/config"
)

// MQTT publishes events as retained JSON messages on
// <prefix>/<hive id>/alert, so a subscriber joining late sees the current
// state of every hive.
type MQTT struct {
	client mqtt.Client
	prefix string
	qos    byte
}

// NewMQTT wraps a connected client.
func NewMQTT(client mqtt.Client, prefix string, qos byte) *MQTT {
	return &MQTT{client: client, prefix: prefix, qos: qos}
}

// DialMQTT connects to the configured broker.
func DialMQTT(cfg config.MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if pw := cfg.Password(); pw != "" {
		opts.SetPassword(pw)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("alerts: mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return NewMQTT(client, cfg.TopicPrefix, cfg.QoS), nil
}

// Topic returns the topic events for hiveID are published on.
func (m *MQTT) Topic(hiveID string) string {
	return m.prefix + "/" + hiveID + "/alert"
}

// Name implements Target.
func (m *MQTT) Name() string { return "mqtt" }

// Send implements Target.
func (m *MQTT) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	token := m.client.Publish(m.Topic(ev.HiveID), m.qos, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", m.Topic(ev.HiveID), ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.Topic(ev.HiveID), err)
	}
	return nil
}

// Close disconnects from the broker, allowing 250ms for in-flight work.
func (m *MQTT) Close() { m.client.Disconnect(250) }
