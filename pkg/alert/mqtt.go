package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// MQTTOptions configure an MQTT channel.
type MQTTOptions struct {
	// Broker is e.g. tcp://localhost:1883. Empty disables the channel.
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	// Timeout bounds connecting and publishing. Defaults to 10s.
	Timeout time.Duration
}

// MQTT publishes alert events as JSON to a broker topic, for home automation.
type MQTT struct {
	opts MQTTOptions

	mu        sync.Mutex
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

var (
	_ Channel = &MQTT{}
	_ Enabler = &MQTT{}
)

func NewMQTT(opts MQTTOptions) *MQTT {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &MQTT{opts: opts, newClient: mqtt.NewClient}
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) Enabled() bool { return m.opts.Broker != "" && m.opts.Topic != "" }

func (m *MQTT) Deliver(ctx context.Context, ev Event) error {
	client, err := m.connected()
	if err != nil {
		return m.deliveryError(err)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return m.deliveryError(fmt.Errorf("marshal event: %w", err))
	}

	token := client.Publish(m.opts.Topic, m.opts.QoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return m.deliveryError(ctx.Err())
	case <-time.After(m.opts.Timeout):
		return m.deliveryError(fmt.Errorf("publish to %s timed out after %s", m.opts.Topic, m.opts.Timeout))
	}
	if err := token.Error(); err != nil {
		return m.deliveryError(fmt.Errorf("publish to %s: %w", m.opts.Topic, err))
	}

	return nil
}

// connected returns a connected client, connecting lazily on first use.
func (m *MQTT) connected() (mqtt.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil && m.client.IsConnected() {
		return m.client, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(m.opts.Broker).
		SetClientID(m.opts.ClientID).
		SetConnectTimeout(m.opts.Timeout).
		SetAutoReconnect(true)

	client := m.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(m.opts.Timeout) {
		// Stop the pending connect attempt and its reconnect loop.
		client.Disconnect(0)
		return nil, fmt.Errorf("connect to %s timed out", m.opts.Broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: %w", m.opts.Broker, err)
	}

	logrus.WithField("broker", m.opts.Broker).Info("connected to mqtt broker")
	m.client = client
	return client, nil
}

// Close disconnects from the broker, if connected.
func (m *MQTT) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	m.client = nil
}

func (m *MQTT) deliveryError(err error) error {
	return &ChannelError{Channel: m.Name(), Kind: KindDelivery, Err: err}
}
