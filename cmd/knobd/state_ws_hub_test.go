package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// Hub tests use clients with a nil conn; the hub only touches conn on close
// and guards against nil.

func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(quietLogger(), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

func newTestClient(hub *Hub, name string, buf int) *Client {
	return &Client{
		hub:        hub,
		send:       make(chan []byte, buf),
		remoteAddr: name,
		logger:     quietLogger(),
	}
}

func registerAndWait(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}, c.remoteAddr+" not registered in time")
}

func runTestHub(t *testing.T, hub *Hub) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for hub to stop")
		}
	}
}

func TestHub_BroadcastDeliveredToAllClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	stop := runTestHub(t, hub)
	defer stop()

	c1 := newTestClient(hub, "c1", 4)
	c2 := newTestClient(hub, "c2", 4)
	registerAndWait(t, hub, c1)
	registerAndWait(t, hub, c2)

	if n := hub.ClientCount(); n != 2 {
		t.Fatalf("expected 2 clients, got %d", n)
	}

	msg := []byte(`{"type":"motd_changed","data":{"text":"hi"}}`)
	hub.broadcast <- msg

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Fatalf("%s got %q, want %q", c.remoteAddr, got, msg)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for %s to receive broadcast", c.remoteAddr)
		}
	}
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	hub := newTestHub(t, 1, 8)
	stop := runTestHub(t, hub)
	defer stop()

	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 8)
	registerAndWait(t, hub, slow)
	registerAndWait(t, hub, fast)

	slow.send <- []byte(`"already queued"`)

	msg := []byte(`{"type":"rotary","data":{"direction":"cw","fast":false}}`)
	hub.broadcast <- msg

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Fatalf("fast client got %q, want %q", got, msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client to receive broadcast")
	}

	// Drain the pre-filled frame, then expect the channel to be closed.
	select {
	case <-slow.send:
	default:
	}
	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow send channel to be closed")

	waitUntil(t, 500*time.Millisecond, func() bool { return hub.ClientCount() == 1 }, "slow client still registered")
}

func TestHub_StopClosesAllClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	stop := runTestHub(t, hub)

	c := newTestClient(hub, "c", 4)
	registerAndWait(t, hub, c)
	stop()

	if _, ok := <-c.send; ok {
		t.Fatalf("expected send channel closed on hub stop")
	}
	if n := hub.ClientCount(); n != 0 {
		t.Fatalf("expected no clients after stop, got %d", n)
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

type frame struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts"`
	Data json.RawMessage `json:"data"`
}

func nextFrame(t *testing.T, hub *Hub) frame {
	t.Helper()
	select {
	case msg := <-hub.broadcast:
		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			t.Fatalf("decode frame %s: %v", msg, err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for broadcast frame")
	}
	return frame{}
}

func TestRunBroadcaster_CoalescesBurstsAndKeepsOrder(t *testing.T) {
	hub := newTestHub(t, 4, 16)
	src := make(chan StateBroadcast, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunBroadcaster(ctx, hub, src, quietLogger())
	}()

	src <- BroadcastRotary{Direction: "cw"}
	src <- BroadcastRotary{Direction: "ccw", Fast: true}
	src <- BroadcastMOTDChanged{Text: "hello", At: testT0}

	f := nextFrame(t, hub)
	if f.Type != "rotary" {
		t.Fatalf("expected pending rotary to flush first, got %s", f.Type)
	}
	var rot wsRotaryData
	if err := json.Unmarshal(f.Data, &rot); err != nil {
		t.Fatal(err)
	}
	if rot.Direction != "ccw" || !rot.Fast {
		t.Fatalf("expected latest rotary step to win, got %+v", rot)
	}

	f = nextFrame(t, hub)
	if f.Type != "motd_changed" || f.Ts == nil || !f.Ts.Equal(testT0) {
		t.Fatalf("unexpected motd frame %+v", f)
	}

	// A lone coalesced event goes out once the window closes.
	src <- BroadcastEnergyChanged{Energy: EnergySnapshot{Solar: 900}}
	f = nextFrame(t, hub)
	if f.Type != "energy_changed" {
		t.Fatalf("expected energy_changed, got %s", f.Type)
	}
	if len(hub.broadcast) != 0 {
		t.Fatalf("expected exactly one energy frame")
	}

	close(src)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcaster did not stop when its source closed")
	}
}

func TestConvertBroadcast_Types(t *testing.T) {
	cases := []struct {
		in   StateBroadcast
		want string
	}{
		{BroadcastScreenChanged{Screen: "clock", Previous: "hello"}, "screen_changed"},
		{BroadcastSettingsChanged{Settings: DefaultSettings()}, "settings_changed"},
		{BroadcastEnergyChanged{}, "energy_changed"},
		{BroadcastWeatherChanged{}, "weather_changed"},
		{BroadcastBinsChanged{}, "bins_changed"},
		{BroadcastMOTDChanged{Text: "x"}, "motd_changed"},
		{BroadcastDeviceChanged{Action: "factory_reset_pending"}, "device_changed"},
		{BroadcastConnectionChanged{MQTT: true}, "connection_changed"},
		{BroadcastRotary{Direction: "cw"}, "rotary"},
	}
	for _, tc := range cases {
		ev, ok := convertBroadcast(tc.in)
		if !ok || ev.Type != tc.want {
			t.Fatalf("convertBroadcast(%T) = %q,%v want %q", tc.in, ev.Type, ok, tc.want)
		}
		if _, err := json.Marshal(envelope{Type: ev.Type, Data: ev.Data}); err != nil {
			t.Fatalf("%s does not encode: %v", ev.Type, err)
		}
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

func TestClient_ShutdownTwiceClosesSendOnce(t *testing.T) {
	hub := newTestHub(t, 2, 4)
	c := newTestClient(hub, "twice", 2)

	c.shutdown()
	c.shutdown()

	if _, ok := <-c.send; ok {
		t.Fatal("expected send to be closed")
	}
}

func TestHub_RemoveAfterStopDoesNotPanic(t *testing.T) {
	hub := newTestHub(t, 2, 4)
	stop := runTestHub(t, hub)

	c := newTestClient(hub, "late", 2)
	registerAndWait(t, hub, c)
	stop()

	// A read pump that fails after shutdown still unregisters its client.
	hub.removeClient(c, "unregister")
	c.shutdown()
}
