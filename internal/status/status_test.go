package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/button-sensor/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Name: "hallway", PollMs: 10, DebounceMs: 50, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PollMs != 10 {
		t.Errorf("Config.PollMs: got %d, want 10", snap.Config.PollMs)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.State != logic.StateIdle {
		t.Errorf("expected IDLE initially, got %s", snap.State)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if snap.LastEvent != nil {
		t.Error("expected no last event initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(logic.StateLongPressing, true, logic.EventCounts{Click: 3, LongPressStart: 1})

	snap := tr.Snapshot()
	if snap.State != logic.StateLongPressing {
		t.Errorf("State: got %q, want LONG_PRESSING", snap.State)
	}
	if !snap.LongPressed {
		t.Error("expected LongPressed=true")
	}
	if snap.Counts.Click != 3 {
		t.Errorf("Counts.Click: got %d, want 3", snap.Counts.Click)
	}
	if snap.Counts.LongPressStart != 1 {
		t.Errorf("Counts.LongPressStart: got %d, want 1", snap.Counts.LongPressStart)
	}
}

func TestSetTiming(t *testing.T) {
	tr := NewTracker(time.Now(), Config{DebounceMs: 50, ClickMs: 600, LongPressMs: 1000})

	tr.SetTiming(logic.Timing{Debounce: 30, ClickWindow: 400, LongPress: 800})

	cfg := tr.Snapshot().Config
	if cfg.DebounceMs != 30 || cfg.ClickMs != 400 || cfg.LongPressMs != 800 {
		t.Errorf("timing not applied: %+v", cfg)
	}
}

func TestSetLastEvent(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	ts := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)

	tr.SetLastEvent(logic.Event{Type: logic.EventDoubleClick, Timestamp: ts})

	snap := tr.Snapshot()
	if snap.LastEvent == nil {
		t.Fatal("expected last event")
	}
	if snap.LastEvent.Type != logic.EventDoubleClick {
		t.Errorf("LastEvent.Type: got %s", snap.LastEvent.Type)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{Events: []string{"click"}})
	tr.Update(logic.StatePressing, false, logic.EventCounts{Click: 1})

	snap1 := tr.Snapshot()
	snap1.Config.Events[0] = "mutated"

	tr.Update(logic.StateIdle, false, logic.EventCounts{Click: 2})

	if snap1.State != logic.StatePressing {
		t.Error("snapshot should be a copy; State was modified")
	}
	if snap1.Counts.Click != 1 {
		t.Error("snapshot should be a copy; Counts was modified")
	}
	if got := tr.Snapshot().Config.Events[0]; got != "click" {
		t.Errorf("mutating a snapshot leaked into the tracker: %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:         logic.StateWaitingSecondPress,
		Counts:        logic.EventCounts{Click: 5, DoubleClick: 2, LongPressStop: 1},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config: Config{
			Name:        "hallway",
			Pin:         17,
			Polarity:    "active-low",
			Events:      []string{"click", "double_click"},
			PollMs:      10,
			DebounceMs:  50,
			ClickMs:     600,
			LongPressMs: 1000,
			HeartbeatMs: 900000,
			Broker:      "tcp://localhost:1883",
			HTTPAddr:    ":80",
		},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Name != "hallway" {
		t.Errorf("Name: got %q, want hallway", parsed.Status.Name)
	}
	if parsed.Status.State != "WAITING_SECOND_PRESS" {
		t.Errorf("State: got %q", parsed.Status.State)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Click != 5 || parsed.Status.Counts.DoubleClick != 2 || parsed.Status.Counts.LongPressStop != 1 {
		t.Errorf("Counts: got %+v", parsed.Status.Counts)
	}
	if parsed.Status.Config.ClickMs != 600 {
		t.Errorf("Config.ClickMs: got %d, want 600", parsed.Status.Config.ClickMs)
	}
	if len(parsed.Status.Config.Events) != 2 {
		t.Errorf("Config.Events: got %v", parsed.Status.Config.Events)
	}
	if parsed.Status.Event != "" || parsed.Status.Reason != "" {
		t.Error("expected empty Event and Reason for web format")
	}
	if parsed.Status.LastEvent != nil {
		t.Error("expected last_event to be omitted")
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.State != "UNKNOWN" {
		t.Errorf("State: got %q, want UNKNOWN", parsed.Status.State)
	}
	if parsed.Status.Config.Events == nil {
		t.Error("events should encode as an empty list, not null")
	}
}

func TestFormatJSONWithLastEventAndNetwork(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:     logic.StateIdle,
		LastEvent: &logic.Event{Type: logic.EventClick, Timestamp: start.Add(time.Minute)},
		StartTime: start,
		Now:       start.Add(2 * time.Minute),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.LastEvent == nil {
		t.Fatal("expected last_event")
	}
	if parsed.Status.LastEvent.Event != "CLICK" {
		t.Errorf("LastEvent.Event: got %q", parsed.Status.LastEvent.Event)
	}
	if parsed.Status.LastEvent.Timestamp != "2026-01-01T00:01:00Z" {
		t.Errorf("LastEvent.Timestamp: got %q", parsed.Status.LastEvent.Timestamp)
	}
	if parsed.Status.Network == nil || parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network: got %+v", parsed.Status.Network)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:     logic.StateIdle,
		Counts:    logic.EventCounts{Click: 3},
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.Counts.Click != 3 {
		t.Errorf("Counts.Click: got %d, want 3", parsed.Status.Counts.Click)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var raw map[string]interface{}
	json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{Events: []string{"click"}})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(logic.StatePressing, i%2 == 0, logic.EventCounts{Click: i})
			tr.SetLastEvent(logic.Event{Type: logic.EventClick})
			tr.SetTiming(logic.DefaultTiming())
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
