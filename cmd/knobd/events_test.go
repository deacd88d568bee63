package main

import (
	"strings"
	"testing"
)

func TestUnmarshalEvent_ClientTypes(t *testing.T) {
	cases := []struct {
		line string
		want Event
	}{
		{`{"type":"rotate","data":{"direction":"cw"}}`, RotateKnob{Direction: "cw"}},
		{`{"type":"button"}`, PressButton{}},
		{`{"type":"set_screen","data":{"screen":"weather"}}`, SetScreen{Screen: "weather"}},
		{`{"type":"set_brightness","data":{"brightness":60,"origin":"ipc"}}`, SetBrightness{Brightness: 60, Origin: "ipc"}},
		{`{"type":"set_haptic","data":{"mode":"off"}}`, SetHaptic{Mode: "off"}},
		{`{"type":"device_command","data":{"command":"status"}}`, DeviceCommand{Command: "status"}},
		{`{"type":"play_haptic","data":{"pattern":"success"}}`, PlayHaptic{Pattern: "success"}},
	}
	for _, tc := range cases {
		got, err := UnmarshalEvent([]byte(tc.line))
		if err != nil {
			t.Fatalf("UnmarshalEvent(%s): %v", tc.line, err)
		}
		if got != tc.want {
			t.Fatalf("UnmarshalEvent(%s) = %#v, want %#v", tc.line, got, tc.want)
		}
	}
}

func TestUnmarshalEvent_Errors(t *testing.T) {
	cases := map[string]string{
		`{"type":"volume_up"}`:       "unknown event type",
		`{"type":"set_brightness"}`:  "missing data",
		`{"type":"rotate","data":1}`: "unmarshal rotate",
		`not json`:                   "unmarshal envelope",
	}
	for line, want := range cases {
		_, err := UnmarshalEvent([]byte(line))
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("UnmarshalEvent(%s): expected error containing %q, got %v", line, want, err)
		}
	}
}

func TestMarshalEvent_Envelope(t *testing.T) {
	b, err := MarshalEvent(SetBrightness{Brightness: 75, Origin: "knob-ctl"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalEvent(b)
	if err != nil {
		t.Fatal(err)
	}
	if got != (SetBrightness{Brightness: 75, Origin: "knob-ctl"}) {
		t.Fatalf("unexpected event %#v", got)
	}

	b, err = MarshalEvent(PressButton{})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"type":"button"}` {
		t.Fatalf("unexpected button envelope %s", b)
	}

	if _, err := MarshalEvent(Tick{}); err == nil {
		t.Fatalf("internal events must not be encodable")
	}
}
