package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
	"github.com/sweeney/button-sensor/internal/web"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const pollInterval = 10 * time.Millisecond

// run builds a sample stream from alternating (pressed, count) runs.
func run(runs ...interface{}) []bool {
	var out []bool
	for i := 0; i < len(runs); i += 2 {
		pressed := runs[i].(bool)
		n := runs[i+1].(int)
		for j := 0; j < n; j++ {
			out = append(out, pressed)
		}
	}
	return out
}

// simulate mirrors the daemon loop: read GPIO, classify, publish what is publishable.
func simulate(t *testing.T, samples []bool, publisher mqtt.Publisher, tracker *status.Tracker, kinds ...logic.Kind) *logic.Detector {
	t.Helper()
	reader := gpio.NewFakeReader(samples)
	detector := logic.NewDetector(logic.NewButton(logic.ActiveLow), startTime)
	detector.Enable(kinds...)

	for i := range samples {
		pressed, err := reader.Read()
		if err != nil {
			t.Fatalf("sample %d: gpio read error: %v", i, err)
		}

		now := startTime.Add(time.Duration(i) * pollInterval)
		for _, event := range detector.Process(logic.Input{Pressed: pressed, Time: now}) {
			if !mqtt.Publishable(event.Type) {
				continue
			}
			if tracker != nil {
				tracker.SetLastEvent(event)
			}
			// Publish failures must not stop the loop
			_ = publisher.Publish(event)
		}

		if tracker != nil {
			state, long := detector.CurrentState()
			tracker.Update(state, long, detector.EventCountsSnapshot())
		}
	}
	return detector
}

var allKinds = []logic.Kind{logic.KindClick, logic.KindDoubleClick, logic.KindLongPress}

// TestIntegrationFullFlow tests the complete flow from GPIO to MQTT using fakes.
func TestIntegrationFullFlow(t *testing.T) {
	samples := run(
		true, 10, false, 70, // click: pressed 0..90ms, reported after the window
		true, 5, false, 10, true, 5, false, 10, // double click at 800ms and 950ms
		true, 150, false, 10, // long press from 1100ms
	)
	publisher := mqtt.NewFakePublisher()
	publisher.Name = "hallway"

	detector := simulate(t, samples, publisher, nil, allKinds...)

	want := []struct {
		typ  logic.EventType
		ms   int
		held time.Duration
	}{
		{logic.EventClick, 610, 100 * time.Millisecond},
		{logic.EventDoubleClick, 1010, 0},
		{logic.EventLongPressStart, 2110, 0},
		{logic.EventLongPressStop, 2600, 1500 * time.Millisecond},
	}
	if len(publisher.Events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(publisher.Events), publisher.Events)
	}
	for i, w := range want {
		e := publisher.Events[i]
		if e.Type != w.typ {
			t.Errorf("event %d: expected %s, got %s", i, w.typ, e.Type)
		}
		if wantTS := startTime.Add(time.Duration(w.ms) * time.Millisecond); !e.Timestamp.Equal(wantTS) {
			t.Errorf("event %d: expected timestamp %v, got %v", i, wantTS, e.Timestamp)
		}
		if e.Held != w.held {
			t.Errorf("event %d: expected held %v, got %v", i, w.held, e.Held)
		}
	}

	for i, payload := range publisher.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Fatalf("payload %d: invalid JSON: %v", i, err)
		}
		if parsed.Button.Name != "hallway" {
			t.Errorf("payload %d: expected name hallway, got %q", i, parsed.Button.Name)
		}
		if parsed.Button.Event != string(want[i].typ) {
			t.Errorf("payload %d: expected event %s, got %s", i, want[i].typ, parsed.Button.Event)
		}
	}

	counts := detector.EventCountsSnapshot()
	if counts.DuringLongPress != 49 {
		t.Errorf("expected 49 DURING_LONG_PRESS ticks, got %d", counts.DuringLongPress)
	}
}

func TestIntegrationBounceRejection(t *testing.T) {
	samples := run(
		true, 2, false, 1, true, 1, false, 3, // chatter shorter than the debounce
		false, 100,
	)
	publisher := mqtt.NewFakePublisher()

	simulate(t, samples, publisher, nil, allKinds...)

	if len(publisher.Events) != 0 {
		t.Errorf("expected no events for contact bounce, got %+v", publisher.Events)
	}
}

func TestIntegrationClickWithoutDoubleClickIsImmediate(t *testing.T) {
	samples := run(true, 10, false, 5)
	publisher := mqtt.NewFakePublisher()

	simulate(t, samples, publisher, nil, logic.KindClick)

	if len(publisher.Events) != 1 || publisher.Events[0].Type != logic.EventClick {
		t.Fatalf("expected a single CLICK, got %+v", publisher.Events)
	}
	if !publisher.Events[0].Timestamp.Equal(startTime.Add(100 * time.Millisecond)) {
		t.Errorf("click should be reported on release, got %v", publisher.Events[0].Timestamp)
	}
}

// TestIntegrationPublishFailureDoesNotCrash verifies publish errors are handled gracefully.
func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	publisher.PublishError = errors.New("broker down")

	detector := simulate(t, run(true, 10, false, 70), publisher, nil, allKinds...)

	if len(publisher.Events) != 0 {
		t.Errorf("failed publishes must not be recorded, got %d", len(publisher.Events))
	}
	if detector.EventCountsSnapshot().Click != 1 {
		t.Error("click should still be counted")
	}
}

func TestIntegrationPayloadFormat(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	publisher.Name = "hallway"

	simulate(t, run(true, 10, false, 5), publisher, nil, logic.KindClick)

	if len(publisher.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(publisher.Payloads))
	}
	want := `{"button":{"name":"hallway","timestamp":"2026-01-01T12:00:00.1Z","event":"CLICK","state":"IDLE","long_pressed":false,"held_ms":100}}`
	if got := string(publisher.Payloads[0]); got != want {
		t.Errorf("payload mismatch:\ngot:  %s\nwant: %s", got, want)
	}
}

func TestIntegrationStatusEndpoint(t *testing.T) {
	tracker := status.NewTracker(startTime, status.Config{
		Name:   "hallway",
		Events: []string{"click", "double_click", "long_press"},
	})
	publisher := mqtt.NewFakePublisher()

	// Stop mid long press so the tracker reports it in progress
	simulate(t, run(true, 120), publisher, tracker, allKinds...)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := web.New("", tracker)
	go srv.Serve(ln)
	t.Cleanup(func() { ln.Close() })

	resp, err := http.Get(fmt.Sprintf("http://%s/index.json", ln.Addr()))
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var got status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status.State != string(logic.StateLongPressing) {
		t.Errorf("expected LONG_PRESSING, got %s", got.Status.State)
	}
	if !got.Status.LongPressed {
		t.Error("expected long_pressed=true")
	}
	if got.Status.LastEvent == nil || got.Status.LastEvent.Event != string(logic.EventLongPressStart) {
		t.Errorf("expected last event LONG_PRESS_START, got %+v", got.Status.LastEvent)
	}
	if got.Status.Counts.LongPressStart != 1 {
		t.Errorf("expected long_press_start=1, got %d", got.Status.Counts.LongPressStart)
	}
}

func TestIntegrationShutdownPayloadFormat(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	event := mqtt.SystemEvent{
		Timestamp: startTime,
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
		Retained:  true,
	}
	if err := publisher.PublishSystem(event); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	want := `{"system":{"timestamp":"2026-01-01T12:00:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if got := string(publisher.SystemPayloads[0]); got != want {
		t.Errorf("payload mismatch:\ngot:  %s\nwant: %s", got, want)
	}
}
