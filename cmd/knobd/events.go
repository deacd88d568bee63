package main

import (
	"encoding/json"
	"fmt"
	"time"

	"knobd/internal/rotary"
)

// ============================================================================
// Events - inputs to the reducer
// ============================================================================
// Events come from the knob (dispatcher), MQTT feeds, IPC clients, the
// WebSocket server and from effects reporting back what they observed.
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// Tick is emitted by the daemon loop at a fixed cadence.
// Dt is wall-clock delta in seconds between ticks.
type Tick struct {
	Now time.Time
	Dt  float64
}

func (Tick) eventMarker() {}

// TimedEvent stamps an external event with its arrival time.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// ----------------------------------------------------------------------------
// Knob input
// ----------------------------------------------------------------------------

// RotaryInput is one decoded encoder event from the dispatcher.
type RotaryInput struct {
	Input rotary.Event
}

func (RotaryInput) eventMarker() {}

// RotateKnob simulates one rotation step. Direction is "cw" or "ccw".
type RotateKnob struct {
	Direction string `json:"direction"`
}

func (RotateKnob) eventMarker() {}

// PressButton simulates a button press.
type PressButton struct{}

func (PressButton) eventMarker() {}

// ----------------------------------------------------------------------------
// Control requests (IPC and MQTT)
// ----------------------------------------------------------------------------

// SetScreen jumps straight to a screen by name.
type SetScreen struct {
	Screen string `json:"screen"`
}

func (SetScreen) eventMarker() {}

// SetBrightness sets display brightness in percent (0-100).
type SetBrightness struct {
	Brightness int    `json:"brightness"`
	Origin     string `json:"origin,omitempty"` // e.g. "mqtt", "ipc"
}

func (SetBrightness) eventMarker() {}

// SetHaptic switches haptics: on|true|1|enable, off|false|0|disable or toggle.
type SetHaptic struct {
	Mode   string `json:"mode"`
	Origin string `json:"origin,omitempty"`
}

func (SetHaptic) eventMarker() {}

// DeviceCommand is one of reboot|restart, factory_reset, wifi_reset, status.
type DeviceCommand struct {
	Command string `json:"command"`
	Origin  string `json:"origin,omitempty"`
}

func (DeviceCommand) eventMarker() {}

// PlayHaptic plays a named pattern, subject to the haptic setting.
type PlayHaptic struct {
	Pattern string `json:"pattern"`
}

func (PlayHaptic) eventMarker() {}

// ----------------------------------------------------------------------------
// MQTT feeds
// ----------------------------------------------------------------------------

// EnergyReading is a validated power reading. Field is balance, solar, import or used.
type EnergyReading struct {
	Field string
	Watts float64
}

func (EnergyReading) eventMarker() {}

type TariffChanged struct {
	Tariff string
}

func (TariffChanged) eventMarker() {}

type TemperatureReading struct {
	Celsius float64
}

func (TemperatureReading) eventMarker() {}

type HumidityReading struct {
	Percent float64
}

func (HumidityReading) eventMarker() {}

type FrostRiskReading struct {
	Active bool
}

func (FrostRiskReading) eventMarker() {}

type BinScheduleReceived struct {
	Schedule BinSchedule
}

func (BinScheduleReceived) eventMarker() {}

type MOTDReceived struct {
	Text string
}

func (MOTDReceived) eventMarker() {}

// ----------------------------------------------------------------------------
// Observations
// ----------------------------------------------------------------------------

// MQTTConnectionChanged reports the broker connection going up or down.
type MQTTConnectionChanged struct {
	Connected bool
	At        time.Time
}

func (MQTTConnectionChanged) eventMarker() {}

// RequestStateSnapshot asks the daemon for a snapshot, delivered on Reply.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// CommandFailed is emitted when executing a Command fails.
type CommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (CommandFailed) eventMarker() {}

// SettingsSaved is emitted after settings were written to disk.
type SettingsSaved struct {
	Path string
	At   time.Time
}

func (SettingsSaved) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// EventEnvelope is the IPC wire form: a type discriminator plus optional data.
// Only client-originated events are encodable.
// ============================================================================

type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func decodeData[T Event](env EventEnvelope) (Event, error) {
	var v T
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%s: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return v, nil
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "rotate":
		return decodeData[RotateKnob](env)
	case "button":
		return PressButton{}, nil
	case "set_screen":
		return decodeData[SetScreen](env)
	case "set_brightness":
		return decodeData[SetBrightness](env)
	case "set_haptic":
		return decodeData[SetHaptic](env)
	case "device_command":
		return decodeData[DeviceCommand](env)
	case "play_haptic":
		return decodeData[PlayHaptic](env)
	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator.
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope
	var payload any

	switch e := e.(type) {
	case RotateKnob:
		env.Type, payload = "rotate", e
	case PressButton:
		env.Type = "button"
	case SetScreen:
		env.Type, payload = "set_screen", e
	case SetBrightness:
		env.Type, payload = "set_brightness", e
	case SetHaptic:
		env.Type, payload = "set_haptic", e
	case DeviceCommand:
		env.Type, payload = "device_command", e
	case PlayHaptic:
		env.Type, payload = "play_haptic", e
	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}
