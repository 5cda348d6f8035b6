package mqtt

import (
	"github.com/sweeney/button-sensor/internal/logic"
)

// FakePublisher records published events for test assertions. Messages are
// built with the same topic routing and payload encoding as RealPublisher.
type FakePublisher struct {
	// Name is the button name used in topics and payloads.
	Name string

	// TopicPrefix defaults to DefaultTopicPrefix when empty.
	TopicPrefix string

	// Events contains all button events that were published.
	Events []logic.Event

	// Payloads contains the JSON payloads of published button events.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// Messages contains every publish in order, events and system events interleaved.
	Messages []Message

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for a button named "test".
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Name: "test"}
}

// Topics returns the topics the fake routes messages to.
func (f *FakePublisher) Topics() Topics {
	prefix := f.TopicPrefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return NewTopics(prefix, f.Name)
}

// Publish records the button event.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	msg, err := EventMessage(f.Topics(), f.Name, event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, msg.Payload)
	f.Messages = append(f.Messages, msg)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	msg, err := SystemMessage(f.Topics(), event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, msg.Payload)
	f.Messages = append(f.Messages, msg)
	return nil
}

// EventTypes returns the types of the recorded button events in order.
func (f *FakePublisher) EventTypes() []logic.EventType {
	types := make([]logic.EventType, len(f.Events))
	for i, e := range f.Events {
		types[i] = e.Type
	}
	return types
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages and injected errors.
func (f *FakePublisher) Reset() {
	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Messages = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
