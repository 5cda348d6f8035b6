// Package status provides a thread-safe status tracker for the button-sensor daemon.
// It is written by the poll loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/button-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Name        string
	Pin         int
	Polarity    string
	Backend     string
	Events      []string
	PollMs      int64
	DebounceMs  int64
	ClickMs     int64
	LongPressMs int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         logic.State
	LongPressed   bool
	Counts        logic.EventCounts
	LastEvent     *logic.Event
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     logic.StateIdle,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the button state and event counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(state logic.State, longPressed bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.LongPressed = longPressed
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetLastEvent records the most recently published event.
func (t *Tracker) SetLastEvent(e logic.Event) {
	t.mu.Lock()
	t.snap.LastEvent = &e
	t.mu.Unlock()
}

// SetTiming records reloaded button thresholds.
func (t *Tracker) SetTiming(timing logic.Timing) {
	t.mu.Lock()
	t.snap.Config.DebounceMs = int64(timing.Debounce)
	t.snap.Config.ClickMs = int64(timing.ClickWindow)
	t.snap.Config.LongPressMs = int64(timing.LongPress)
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Config.Events = append([]string(nil), s.Config.Events...)
	s.Now = time.Now()
	return s
}
