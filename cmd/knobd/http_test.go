package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHTTP_Healthz(t *testing.T) {
	ws := NewServer(quietLogger(), nil, ServerConfig{})
	srv := httptest.NewServer(newHTTPRouter(ws, nil, quietLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}
}

func postAPI(t *testing.T, url, body string) (int, apiResponse) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s response: %v", url, err)
	}
	return resp.StatusCode, out
}

func TestHTTP_ControlAPIQueuesEvents(t *testing.T) {
	events := make(chan Event, 8)
	ws := NewServer(quietLogger(), events, ServerConfig{})
	srv := httptest.NewServer(newHTTPRouter(ws, events, quietLogger()))
	defer srv.Close()

	cases := []struct {
		path, body string
		want       Event
	}{
		{"/api/screen/weather", "", SetScreen{Screen: "weather"}},
		{"/api/brightness/40", "", SetBrightness{Brightness: 40, Origin: "http"}},
		{"/api/haptic/off", "", SetHaptic{Mode: "off", Origin: "http"}},
		{"/api/events", `{"type":"rotate","data":{"direction":"ccw"}}`, RotateKnob{Direction: "ccw"}},
	}
	for _, tc := range cases {
		code, resp := postAPI(t, srv.URL+tc.path, tc.body)
		if code != http.StatusOK || resp.Status != "success" {
			t.Fatalf("%s: got %d %+v", tc.path, code, resp)
		}
		select {
		case got := <-events:
			if got != tc.want {
				t.Fatalf("%s: got %#v, want %#v", tc.path, got, tc.want)
			}
		default:
			t.Fatalf("%s: no event queued", tc.path)
		}
	}
}

func TestHTTP_ControlAPIRejectsBadInput(t *testing.T) {
	events := make(chan Event, 8)
	ws := NewServer(quietLogger(), events, ServerConfig{})
	srv := httptest.NewServer(newHTTPRouter(ws, events, quietLogger()))
	defer srv.Close()

	for path, body := range map[string]string{
		"/api/screen/kitchen": "",
		"/api/brightness/101": "",
		"/api/brightness/dim": "",
		"/api/haptic/loud":    "",
		"/api/events":         `{"type":"volume_up"}`,
	} {
		code, resp := postAPI(t, srv.URL+path, body)
		if code != http.StatusBadRequest || resp.Status != "error" || resp.Message == "" {
			t.Fatalf("%s: got %d %+v", path, code, resp)
		}
	}
	if len(events) != 0 {
		t.Fatalf("rejected requests must not queue events")
	}

	resp, err := http.Get(srv.URL + "/api/screen/clock")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET on a POST route, got %d", resp.StatusCode)
	}
}

func TestHTTP_StateEndpointUsesDaemonSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 8)
	go runDaemon(ctx, events, &Effects{}, testReducerCfg, NewDaemonState(ScreenEnergy, DefaultSettings(), time.Now()), 20, nil, quietLogger())

	ws := NewServer(quietLogger(), events, ServerConfig{})
	srv := httptest.NewServer(newHTTPRouter(ws, events, quietLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out struct {
		Status string        `json:"status"`
		Data   StateSnapshot `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "success" || out.Data.Screen != "energy" {
		t.Fatalf("unexpected state response %+v", out)
	}
}

func TestHTTP_StateFeedSendsInitThenUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 16)
	broadcasts := make(chan StateBroadcast, 64)
	ws := NewServer(quietLogger(), events, ServerConfig{SnapshotTimeout: 2 * time.Second})

	go runDaemon(ctx, events, &Effects{}, testReducerCfg, NewDaemonState(ScreenClock, DefaultSettings(), time.Now()), 20, broadcasts, quietLogger())
	go ws.Hub().Run(ctx)
	go RunBroadcaster(ctx, ws.Hub(), broadcasts, quietLogger())

	srv := httptest.NewServer(newHTTPRouter(ws, events, quietLogger()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var first struct {
		Type string        `json:"type"`
		Data StateSnapshot `json:"data"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read state_init: %v", err)
	}
	if first.Type != "state_init" || first.Data.Screen != "clock" {
		t.Fatalf("unexpected first frame %+v", first)
	}

	// Wait for registration before triggering a change.
	waitUntil(t, time.Second, func() bool { return ws.Hub().ClientCount() == 1 }, "client not registered")
	events <- SetScreen{Screen: "weather"}

	for {
		var f struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read update: %v", err)
		}
		if f.Type != "screen_changed" {
			continue
		}
		var sc wsScreenChangedData
		if err := json.Unmarshal(f.Data, &sc); err != nil {
			t.Fatal(err)
		}
		if sc.Screen != "weather" || sc.Previous != "clock" {
			t.Fatalf("unexpected screen_changed %+v", sc)
		}
		return
	}
}
