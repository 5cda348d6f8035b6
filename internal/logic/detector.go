package logic

import (
	"fmt"
	"time"
)

// Detector drives a Button from wall-clock samples and collects the gestures
// its handlers fire.
type Detector struct {
	button        *Button
	startTime     time.Time
	pending       []Event
	now           time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewDetector wraps b. The startTime is the epoch of the button's millisecond
// clock and is also used for calculating uptime in heartbeat events.
func NewDetector(b *Button, startTime time.Time) *Detector {
	return &Detector{
		button:        b,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindClick, KindDoubleClick, KindLongPress:
		return k, nil
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// Enable attaches the handler slots for the given kinds and clears all others.
// KindLongPress attaches the start, during and stop handlers together.
func (d *Detector) Enable(kinds ...Kind) {
	b := d.button
	b.AttachClick(nil)
	b.AttachDoubleClick(nil)
	b.AttachLongPressStart(nil)
	b.AttachDuringLongPress(nil)
	b.AttachLongPressStop(nil)

	for _, k := range kinds {
		switch k {
		case KindClick:
			b.AttachClick(d.record(EventClick))
		case KindDoubleClick:
			b.AttachDoubleClick(d.record(EventDoubleClick))
		case KindLongPress:
			b.AttachLongPressStart(d.record(EventLongPressStart))
			b.AttachDuringLongPress(d.record(EventDuringLongPress))
			b.AttachLongPressStop(d.record(EventLongPressStop))
		}
	}
}

func (d *Detector) record(typ EventType) func() {
	return func() {
		e := Event{
			Timestamp: d.now,
			Type:      typ,
		}
		if typ == EventClick || typ == EventLongPressStop {
			e.Held = time.Duration(d.button.Held()) * time.Millisecond
		}
		d.pending = append(d.pending, e)
	}
}

// Process feeds one sample to the button and returns the events fired during
// that tick, in firing order.
func (d *Detector) Process(input Input) []Event {
	d.now = input.Time
	d.pending = nil

	d.button.Tick(input.Pressed, Millis(d.startTime, input.Time))

	events := d.pending
	d.pending = nil
	for i := range events {
		events[i].State = d.button.State()
		events[i].LongPressed = d.button.IsLongPressed()
		d.count(events[i].Type)
	}
	return events
}

func (d *Detector) count(t EventType) {
	switch t {
	case EventClick:
		d.eventCounts.Click++
	case EventDoubleClick:
		d.eventCounts.DoubleClick++
	case EventLongPressStart:
		d.eventCounts.LongPressStart++
	case EventDuringLongPress:
		d.eventCounts.DuringLongPress++
	case EventLongPressStop:
		d.eventCounts.LongPressStop++
	}
}

// Millis converts t into the button clock: milliseconds since start, truncated
// to 32 bits so it wraps exactly like a hardware millisecond counter.
func Millis(start, t time.Time) uint32 {
	return uint32(t.Sub(start).Milliseconds())
}

// Button returns the wrapped button.
func (d *Detector) Button() *Button {
	return d.button
}

// CurrentState returns the button state and whether a long press is active.
func (d *Detector) CurrentState() (State, bool) {
	return d.button.State(), d.button.IsLongPressed()
}

// EventCountsSnapshot returns a copy of the event counters.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed, or
// if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
