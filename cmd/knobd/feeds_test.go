package main

import (
	"io"
	"log/slog"
	"testing"

	"knobd/internal/mqttbus"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFeeds(t *testing.T, buf int) (*mqttbus.Router, chan Event) {
	t.Helper()
	events := make(chan Event, buf)
	r := mqttbus.NewRouter(quietLogger())
	registerFeeds(r, events, quietLogger())
	return r, events
}

func TestFeeds_RouteValidPayloads(t *testing.T) {
	r, events := newTestFeeds(t, 16)

	cases := []struct {
		topic, payload string
		want           Event
	}{
		{"emon/emontx3/solar", "1250.5", EnergyReading{Field: "solar", Watts: 1250.5}},
		{"emon/emontx3/balance", "-300", EnergyReading{Field: "balance", Watts: -300}},
		{"emon/emontx3/tariff", "Off-Peak", TariffChanged{Tariff: "off-peak"}},
		{"home/weather/temperature", "4.2", TemperatureReading{Celsius: 4.2}},
		{"home/weather/humidity", "81", HumidityReading{Percent: 81}},
		{"home/weather/frost_risk", "yes", FrostRiskReading{Active: true}},
		{"home/bins/schedule", `{"today":"black","tomorrow":"none","days_to_next":7}`,
			BinScheduleReceived{Schedule: BinSchedule{Today: "black", Tomorrow: "none", DaysToNext: 7}}},
		{"home/motd", "  Happy Friday  ", MOTDReceived{Text: "Happy Friday"}},
		{"home/knob/command", "reboot", DeviceCommand{Command: "reboot", Origin: "mqtt"}},
		{"home/knob/brightness", "60", SetBrightness{Brightness: 60, Origin: "mqtt"}},
		{"home/knob/haptic", "toggle", SetHaptic{Mode: "toggle", Origin: "mqtt"}},
	}
	for _, tc := range cases {
		if !r.Route(tc.topic, tc.payload) {
			t.Fatalf("no handler for %s", tc.topic)
		}
		select {
		case got := <-events:
			if got != tc.want {
				t.Fatalf("%s: got %#v, want %#v", tc.topic, got, tc.want)
			}
		default:
			t.Fatalf("%s: no event produced", tc.topic)
		}
	}
}

func TestFeeds_RejectInvalidPayloads(t *testing.T) {
	r, events := newTestFeeds(t, 16)

	invalid := map[string]string{
		"emon/emontx3/solar":       "99999",
		"emon/emontx3/used":        "lots",
		"emon/emontx3/tariff":      "free",
		"home/weather/temperature": "cold",
		"home/bins/schedule":       `{"today":"purple"}`,
		"home/knob/brightness":     "101",
		"home/knob/haptic":         "loud",
		"emon/emontx3/wind":        "10",
	}
	for topic, payload := range invalid {
		r.Route(topic, payload)
	}
	if n := len(events); n != 0 {
		t.Fatalf("expected no events from invalid payloads, got %d", n)
	}
}

func TestFeeds_FullQueueDropsWithoutBlocking(t *testing.T) {
	r, events := newTestFeeds(t, 1)

	r.Route("home/motd", "first")
	r.Route("home/motd", "second")

	if n := len(events); n != 1 {
		t.Fatalf("expected 1 queued event, got %d", n)
	}
	if got := <-events; got != (MOTDReceived{Text: "first"}) {
		t.Fatalf("expected the first message to survive, got %#v", got)
	}
}
