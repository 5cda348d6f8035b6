// Package logic contains the pure click classification logic for a single push button.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injected by the caller.
package logic

import "time"

// State is the phase of the button state machine.
type State string

const (
	StateIdle                  State = "IDLE"
	StatePressing              State = "PRESSING"
	StateWaitingSecondPress    State = "WAITING_SECOND_PRESS"
	StateConfirmingDoubleClick State = "CONFIRMING_DOUBLE_CLICK"
	StateLongPressing          State = "LONG_PRESSING"
)

// Polarity describes how the button is wired.
type Polarity int

const (
	// ActiveLow buttons pull the line to ground when pressed (input uses a pull-up).
	ActiveLow Polarity = iota
	// ActiveHigh buttons drive the line to VCC when pressed (input uses a pull-down).
	ActiveHigh
)

// Pressed translates a raw line level (true = high) into the logical pressed state.
func (p Polarity) Pressed(high bool) bool {
	if p == ActiveLow {
		return !high
	}
	return high
}

func (p Polarity) String() string {
	if p == ActiveLow {
		return "active-low"
	}
	return "active-high"
}

// Timing holds the classification thresholds in milliseconds.
type Timing struct {
	Debounce    uint32 // minimum press length, and minimum gap before a second press
	ClickWindow uint32 // second press must start within this long of the first press start
	LongPress   uint32 // hold longer than this to start a long press
}

// Default timing constants.
const (
	DefaultDebounceMs    = 50
	DefaultClickWindowMs = 600
	DefaultLongPressMs   = 1000
)

// DefaultTiming returns the timing used by NewButton.
func DefaultTiming() Timing {
	return Timing{
		Debounce:    DefaultDebounceMs,
		ClickWindow: DefaultClickWindowMs,
		LongPress:   DefaultLongPressMs,
	}
}

// EventType identifies a classified button gesture.
type EventType string

const (
	EventClick           EventType = "CLICK"
	EventDoubleClick     EventType = "DOUBLE_CLICK"
	EventLongPressStart  EventType = "LONG_PRESS_START"
	EventDuringLongPress EventType = "DURING_LONG_PRESS"
	EventLongPressStop   EventType = "LONG_PRESS_STOP"
)

// Kind selects a group of handler slots to attach.
type Kind string

const (
	KindClick       Kind = "click"
	KindDoubleClick Kind = "double_click"
	KindLongPress   Kind = "long_press"
)

// Event is a gesture to be published.
type Event struct {
	Timestamp   time.Time
	Type        EventType
	State       State         // machine state after the tick that fired the event
	LongPressed bool          // IsLongPressed after the tick
	Held        time.Duration // press length, set for CLICK and LONG_PRESS_STOP
}

// Input represents a single sample of the (already polarity-corrected) button line.
type Input struct {
	Pressed bool
	Time    time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Click           int
	DoubleClick     int
	LongPressStart  int
	DuringLongPress int
	LongPressStop   int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
