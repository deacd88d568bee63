package main

import (
	"strings"
	"testing"
)

func TestFormatFrame(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"type":"rotary","ts":"2026-03-14T12:00:00Z","data":{"direction":"cw","fast":true}}`, "[ROTARY] direction=cw fast=true"},
		{`{"type":"screen_changed","data":{"screen":"clock","previous":"hello","menu":{"active":false}}}`,
			`[SCREEN_CHANGED] menu={"active":false} previous=hello screen=clock`},
		{`{"type":"connection_changed","data":{"mqtt":false}}`, "[CONNECTION_CHANGED] mqtt=false"},
		{`not json`, "[TEXT] not json"},
	}
	for _, tc := range cases {
		if got := formatFrame([]byte(tc.in)); got != tc.want {
			t.Fatalf("formatFrame(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatFrame_StateInitIsIndented(t *testing.T) {
	got := formatFrame([]byte(`{"type":"state_init","data":{"screen":"hello"}}`))
	if !strings.HasPrefix(got, "[STATE_INIT]\n{") || !strings.Contains(got, `  "screen": "hello"`) {
		t.Fatalf("unexpected output %q", got)
	}
}
