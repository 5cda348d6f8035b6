package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Name          string         `json:"name"`
	State         string         `json:"state"`
	LongPressed   bool           `json:"long_pressed"`
	LastEvent     *LastEventJSON `json:"last_event,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"event_counts"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// LastEventJSON describes the most recent published gesture.
type LastEventJSON struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Click           int `json:"click"`
	DoubleClick     int `json:"double_click"`
	LongPressStart  int `json:"long_press_start"`
	DuringLongPress int `json:"during_long_press"`
	LongPressStop   int `json:"long_press_stop"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Pin         int      `json:"pin"`
	Polarity    string   `json:"polarity"`
	Backend     string   `json:"backend"`
	Events      []string `json:"events"`
	PollMs      int64    `json:"poll_ms"`
	DebounceMs  int64    `json:"debounce_ms"`
	ClickMs     int64    `json:"click_ms"`
	LongPressMs int64    `json:"long_press_ms"`
	HeartbeatMs int64    `json:"heartbeat_ms"`
	Broker      string   `json:"broker"`
	HTTPAddr    string   `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}
	events := snap.Config.Events
	if events == nil {
		events = []string{}
	}

	inner := StatusInner{
		Name:          snap.Config.Name,
		State:         state,
		LongPressed:   snap.LongPressed,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Click:           snap.Counts.Click,
			DoubleClick:     snap.Counts.DoubleClick,
			LongPressStart:  snap.Counts.LongPressStart,
			DuringLongPress: snap.Counts.DuringLongPress,
			LongPressStop:   snap.Counts.LongPressStop,
		},
		Config: ConfigJSON{
			Pin:         snap.Config.Pin,
			Polarity:    snap.Config.Polarity,
			Backend:     snap.Config.Backend,
			Events:      events,
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			ClickMs:     snap.Config.ClickMs,
			LongPressMs: snap.Config.LongPressMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	if snap.LastEvent != nil {
		inner.LastEvent = &LastEventJSON{
			Event:     string(snap.LastEvent.Type),
			Timestamp: snap.LastEvent.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
