package main

import (
	"strings"
	"testing"
)

func TestBuildRequest(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"next"}, `{"type":"rotate","data":{"direction":"cw"}}`},
		{[]string{"ccw"}, `{"type":"rotate","data":{"direction":"ccw"}}`},
		{[]string{"press"}, `{"type":"button"}`},
		{[]string{"screen", "energy"}, `{"type":"set_screen","data":{"screen":"energy"}}`},
		{[]string{"brightness", "50"}, `{"type":"set_brightness","data":{"brightness":50,"origin":"knob-ctl"}}`},
		{[]string{"haptic", "OFF"}, `{"type":"set_haptic","data":{"mode":"off","origin":"knob-ctl"}}`},
		{[]string{"play", "success"}, `{"type":"play_haptic","data":{"pattern":"success"}}`},
		{[]string{"factory-reset"}, `{"type":"device_command","data":{"command":"factory_reset","origin":"knob-ctl"}}`},
	}
	for _, tc := range cases {
		got, err := buildRequest(tc.args)
		if err != nil {
			t.Fatalf("buildRequest(%v): %v", tc.args, err)
		}
		if string(got) != tc.want {
			t.Fatalf("buildRequest(%v) = %s, want %s", tc.args, got, tc.want)
		}
	}
}

func TestBuildRequest_Errors(t *testing.T) {
	cases := map[string][]string{
		"requires":           {"screen"},
		"invalid brightness": {"brightness", "140"},
		"unknown command":    {"volume-up"},
	}
	for want, args := range cases {
		_, err := buildRequest(args)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("buildRequest(%v): expected error containing %q, got %v", args, want, err)
		}
	}
}
