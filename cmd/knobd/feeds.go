package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"knobd/internal/mqttbus"
)

// ============================================================================
// MQTT feeds
// ============================================================================
// Each namespace handler validates its payloads and turns them into Events.
// Handlers run on the MQTT client goroutine, so they never block: a full
// event queue drops the message with a warning.
// ============================================================================

type feeds struct {
	events chan<- Event
	logger *slog.Logger
}

// registerFeeds installs the namespace handlers on r.
func registerFeeds(r *mqttbus.Router, events chan<- Event, logger *slog.Logger) *feeds {
	f := &feeds{events: events, logger: logger}
	r.Handle(nsDevice, f.handleDevice)
	r.Handle(nsEnergy, f.handleEnergy)
	r.Handle(nsWeather, f.handleWeather)
	r.Handle(nsBins, f.handleBins)
	r.Handle(nsMOTD, f.handleMOTD)
	return f
}

func (f *feeds) send(topic string, ev Event) {
	select {
	case f.events <- ev:
	default:
		f.logger.Warn("event queue full, dropping mqtt message", "topic", topic)
	}
}

func (f *feeds) reject(topic, payload string, err error) {
	f.logger.Warn("invalid mqtt payload", "topic", topic, "payload", payload, "error", err)
}

// leaf returns the part of topic after its namespace.
func leaf(topic, namespace string) string {
	return strings.TrimPrefix(strings.TrimPrefix(topic, namespace), "/")
}

func (f *feeds) handleDevice(topic, payload string) {
	payload = strings.TrimSpace(payload)
	switch leaf(topic, nsDevice) {
	case "command":
		f.send(topic, DeviceCommand{Command: payload, Origin: "mqtt"})

	case "brightness":
		v, err := strconv.Atoi(payload)
		if err != nil || v < 0 || v > 100 {
			f.reject(topic, payload, fmt.Errorf("brightness must be an integer 0-100"))
			return
		}
		f.send(topic, SetBrightness{Brightness: v, Origin: "mqtt"})

	case "haptic":
		if _, ok := parseHapticMode(payload, false); !ok {
			f.reject(topic, payload, fmt.Errorf("unknown haptic mode"))
			return
		}
		f.send(topic, SetHaptic{Mode: payload, Origin: "mqtt"})

	default:
		f.logger.Debug("ignoring device topic", "topic", topic)
	}
}

func (f *feeds) handleEnergy(topic, payload string) {
	switch field := leaf(topic, nsEnergy); field {
	case "balance", "solar", "import", "used":
		v, err := parseEnergyValue(payload)
		if err != nil {
			f.reject(topic, payload, err)
			return
		}
		f.send(topic, EnergyReading{Field: field, Watts: v})

	case "tariff":
		t, err := parseTariff(payload)
		if err != nil {
			f.reject(topic, payload, err)
			return
		}
		f.send(topic, TariffChanged{Tariff: t})

	default:
		f.logger.Debug("ignoring energy topic", "topic", topic)
	}
}

func (f *feeds) handleWeather(topic, payload string) {
	switch leaf(topic, nsWeather) {
	case "temperature":
		v, err := parseWeatherFloat(payload)
		if err != nil {
			f.reject(topic, payload, err)
			return
		}
		f.send(topic, TemperatureReading{Celsius: v})

	case "humidity":
		v, err := parseWeatherFloat(payload)
		if err != nil {
			f.reject(topic, payload, err)
			return
		}
		f.send(topic, HumidityReading{Percent: v})

	case "frost_risk":
		f.send(topic, FrostRiskReading{Active: parseFrostRisk(payload)})

	default:
		f.logger.Debug("ignoring weather topic", "topic", topic)
	}
}

func (f *feeds) handleBins(topic, payload string) {
	if leaf(topic, nsBins) != "schedule" {
		f.logger.Debug("ignoring bins topic", "topic", topic)
		return
	}
	sch, err := parseBinSchedule(payload)
	if err != nil {
		f.reject(topic, payload, err)
		return
	}
	f.send(topic, BinScheduleReceived{Schedule: sch})
}

func (f *feeds) handleMOTD(topic, payload string) {
	if topic != nsMOTD {
		return
	}
	f.send(topic, MOTDReceived{Text: strings.TrimSpace(payload)})
}
