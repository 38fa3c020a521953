// Package publish exposes session updates outside the process: MQTT topics
// for dashboards and home automation, and Prometheus metrics.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/rowing.report/internal/monitoring"
	"github.com/banshee-data/rowing.report/internal/session"
)

// publishTimeout bounds how long a sink worker waits for a broker ack.
const publishTimeout = 2 * time.Second

// Publisher is the part of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes completed strokes to <prefix>/stroke, phase changes to
// <prefix>/state (retained) and periodic snapshots to <prefix>/snapshot.
type MQTT struct {
	client Publisher
	prefix string
	close  func()
}

// ConnectMQTT connects to broker, for example "tcp://localhost:1883".
func ConnectMQTT(broker, clientID, prefix string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, token.Error())
	}
	monitoring.Logf("publishing to MQTT broker %s under %s/", broker, prefix)

	m := NewMQTT(client, prefix)
	m.close = func() { client.Disconnect(250) }
	return m, nil
}

// NewMQTT publishes through an existing client.
func NewMQTT(client Publisher, prefix string) *MQTT {
	return &MQTT{client: client, prefix: prefix}
}

func (m *MQTT) Name() string { return "mqtt" }

// stateMessage is the retained phase message.
type stateMessage struct {
	State   string    `json:"state"`
	Event   string    `json:"event"`
	Command string    `json:"command,omitempty"`
	Time    time.Time `json:"time"`
	Strokes int       `json:"total_number_of_strokes"`
}

func (m *MQTT) Consume(u session.Update) error {
	switch u.Event {
	case session.EventStrokeCompleted:
		return m.publishJSON("stroke", 1, false, u)
	case session.EventTick:
		u.Curves = nil
		return m.publishJSON("snapshot", 0, false, u)
	default:
		return m.publishJSON("state", 1, true, stateMessage{
			State:   u.State.String(),
			Event:   string(u.Event),
			Command: u.Command,
			Time:    u.Time,
			Strokes: u.TotalNumberOfStrokes,
		})
	}
}

func (m *MQTT) publishJSON(subtopic string, qos byte, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	topic := m.prefix + "/" + subtopic
	token := m.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timed out after %v", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Close disconnects a client opened by ConnectMQTT.
func (m *MQTT) Close() error {
	if m.close != nil {
		m.close()
	}
	return nil
}
