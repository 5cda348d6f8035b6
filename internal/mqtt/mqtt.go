// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/button-sensor/internal/logic"
)

// DefaultTopicPrefix is prepended to every button topic.
const DefaultTopicPrefix = "home/button"

// Topics holds the MQTT topics of one button.
type Topics struct {
	Events string // gesture events
	System string // lifecycle events and LWT
}

// NewTopics builds "<prefix>/<name>/events" and "<prefix>/<name>/system".
func NewTopics(prefix, name string) Topics {
	base := prefix + "/" + name
	return Topics{
		Events: base + "/events",
		System: base + "/system",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a button event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Publishable reports whether an event type is sent to the broker.
// DURING_LONG_PRESS fires on every poll tick of a long press, so it is only counted.
func Publishable(t logic.EventType) bool {
	return t != logic.EventDuringLongPress
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Message is one serialized MQTT publish.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// EventMessage builds the publish for a button event: QoS 1 (at-least-once),
// not retained, on the events topic.
func EventMessage(topics Topics, name string, event logic.Event) (Message, error) {
	payload, err := FormatPayload(name, event)
	if err != nil {
		return Message{}, fmt.Errorf("format payload: %w", err)
	}
	return Message{Topic: topics.Events, Payload: payload, QoS: 1}, nil
}

// SystemMessage builds the publish for a system event on the system topic.
func SystemMessage(topics Topics, event SystemEvent) (Message, error) {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return Message{}, fmt.Errorf("format system payload: %w", err)
	}
	return Message{Topic: topics.System, Payload: payload, QoS: 1, Retained: event.Retained}, nil
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Button ButtonPayload `json:"button"`
}

// ButtonPayload contains the button event details.
type ButtonPayload struct {
	Name        string `json:"name"`
	Timestamp   string `json:"timestamp"`
	Event       string `json:"event"`
	State       string `json:"state"`
	LongPressed bool   `json:"long_pressed"`
	HeldMs      int64  `json:"held_ms,omitempty"`
}

// FormatPayload creates the JSON payload for a button event.
func FormatPayload(name string, event logic.Event) ([]byte, error) {
	payload := Payload{
		Button: ButtonPayload{
			Name:        name,
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339Nano),
			Event:       string(event.Type),
			State:       string(event.State),
			LongPressed: event.LongPressed,
			HeldMs:      event.Held.Milliseconds(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is the retained last-will message the broker publishes when the
// connection drops without a clean disconnect.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
	return data
}
