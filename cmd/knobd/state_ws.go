package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// The state feed pushes JSON text frames {type, ts, data} to every connected
// dashboard. A new connection first receives "state_init", built from a
// snapshot the daemon loop hands back; after that it sees the reducer's
// broadcasts. The hub never waits on a client: one whose queue is full is
// dropped.

// wsOutboundEvent is a typed, externally consumable state event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time // zero means now
}

type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

type wsScreenChangedData struct {
	Screen   string       `json:"screen"`
	Previous string       `json:"previous"`
	Menu     MenuSnapshot `json:"menu"`
}

type wsMOTDChangedData struct {
	Text string `json:"text"`
}

type wsDeviceChangedData struct {
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
}

type wsConnectionChangedData struct {
	MQTT bool `json:"mqtt"`
}

type wsRotaryData struct {
	Direction string `json:"direction"`
	Fast      bool   `json:"fast"`
}

// Hub owns the set of connected clients. Only Run mutates it apart from the
// read-only ClientCount.
type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size. Zero means 32.
	SendBuf int

	// BroadcastBuf is the hub inbound queue size. Zero means 128.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Debug("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			for _, c := range h.fanOut(msg) {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// fanOut offers msg to every client and returns those whose queue was full.
func (h *Hub) fanOut(msg []byte) (full []*Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			full = append(full, c)
		}
	}
	return full
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.shutdown()
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.shutdown()
	h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
}

// BroadcastBytes enqueues a serialized frame. It never blocks; a full hub
// queue drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// Client is one dashboard connection. send is closed exactly once, by
// shutdown, which also ends writePump.
type Client struct {
	hub *Hub

	conn     *websocket.Conn
	send     chan []byte
	stopOnce sync.Once

	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

func (c *Client) shutdown() {
	c.stopOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
	})
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsCoalesceWindow bounds how often bursty broadcast types (rotary steps,
// energy readings) reach clients. The latest event of each type wins.
const wsCoalesceWindow = 50 * time.Millisecond

// coalescedTypes are the broadcast types rate-limited by wsCoalesceWindow.
var coalescedTypes = map[string]bool{
	"rotary":         true,
	"energy_changed": true,
}

// logExit records why a pump stopped. A peer close frame is logged with its
// code; our own close is not logged at all.
func (c *Client) logExit(pump, op string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		c.logger.Debug("ws client closed", "pump", pump, "remote_addr", c.remoteAddr, "code", ce.Code, "reason", ce.Text)
		return
	}
	c.logger.Debug("ws client failed", "pump", pump, "op", op, "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes queued messages and pings. It exits on write error or
// when send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", "write", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", "ping", err)
				return
			}
		}
	}
}

// readPump discards incoming messages so control frames are handled and
// disconnects are noticed, then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", "read", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// Server serves /ws/state and owns the hub behind it.
type Server struct {
	logger *slog.Logger
	hub    *Hub

	// events carries the initial snapshot request through the daemon loop.
	events chan<- Event

	snapshotTimeout time.Duration
}

type ServerConfig struct {
	Hub HubConfig

	// SnapshotTimeout bounds the state_init round trip. Zero means 1s.
	SnapshotTimeout time.Duration
}

// NewServer constructs the state feed. Register it on a mux and run the hub
// and RunBroadcaster.
func NewServer(logger *slog.Logger, events chan<- Event, cfg ServerConfig) *Server {
	timeout := cfg.SnapshotTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Server{
		logger:          logger,
		hub:             NewHub(logger, cfg.Hub),
		events:          events,
		snapshotTimeout: timeout,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register installs the WebSocket handler on r.
func (s *Server) Register(r *mux.Router, path string) {
	if r == nil {
		return
	}
	r.HandleFunc(path, s.handleStateWS).Methods("GET")
}

var upgrader = websocket.Upgrader{
	// Local dashboards connect from arbitrary origins on the LAN.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades, registers the client and sends state_init.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)
	s.hub.register <- client

	// The pumps outlive the request: net/http cancels r.Context() when this
	// handler returns.
	go client.writePump(context.Background())
	go client.readPump(context.Background())

	if s.events == nil {
		return
	}

	reply := make(chan StateSnapshot, 1)
	waitCtx, cancel := context.WithTimeout(r.Context(), s.snapshotTimeout)
	defer cancel()

	select {
	case <-waitCtx.Done():
		s.logger.Warn("ws snapshot request not queued", "error", waitCtx.Err())
		return
	case s.events <- RequestStateSnapshot{Reply: reply}:
	}

	select {
	case <-waitCtx.Done():
		if !errors.Is(waitCtx.Err(), context.Canceled) {
			s.logger.Warn("ws snapshot request failed", "error", waitCtx.Err())
		}
		return

	case snap := <-reply:
		now := time.Now().UTC()
		initMsg, err := json.Marshal(envelope{Type: "state_init", Ts: &now, Data: snap})
		if err != nil {
			s.logger.Warn("ws state_init marshal failed", "error", err)
			return
		}
		select {
		case client.send <- initMsg:
		default:
			s.hub.unregister <- client
		}
	}
}

// RunBroadcaster turns reducer broadcasts into frames for the hub. Run it as a
// single goroutine.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	// Latest-wins per coalesced type, flushed at most once per window.
	pending := make(map[string]wsOutboundEvent)
	var order []string
	var timer *time.Timer
	var timerCh <-chan time.Time

	send := func(ev wsOutboundEvent) {
		ts := ev.At
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		msg, err := json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}

	flushPending := func() {
		for _, typ := range order {
			send(pending[typ])
			delete(pending, typ)
		}
		order = order[:0]
	}

	stopTimer := func() {
		if timer != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
		timerCh = nil
	}

	for {
		select {
		case <-ctx.Done():
			flushPending()
			stopTimer()
			return

		case <-timerCh:
			timer = nil
			timerCh = nil
			flushPending()

		case b, ok := <-src:
			if !ok {
				flushPending()
				stopTimer()
				logger.Debug("ws broadcaster stopping (source ended)")
				return
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			if coalescedTypes[ev.Type] {
				if _, seen := pending[ev.Type]; !seen {
					order = append(order, ev.Type)
				}
				pending[ev.Type] = ev
				if timer == nil {
					timer = time.NewTimer(wsCoalesceWindow)
					timerCh = timer.C
				}
				continue
			}

			// Keep ordering: anything pending goes out before this event.
			flushPending()
			stopTimer()
			send(ev)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastScreenChanged:
		return wsOutboundEvent{
			Type: "screen_changed",
			Data: wsScreenChangedData{Screen: ev.Screen, Previous: ev.Previous, Menu: ev.Menu},
			At:   ev.At,
		}, true
	case BroadcastSettingsChanged:
		return wsOutboundEvent{Type: "settings_changed", Data: ev.Settings, At: ev.At}, true
	case BroadcastEnergyChanged:
		return wsOutboundEvent{Type: "energy_changed", Data: ev.Energy, At: ev.At}, true
	case BroadcastWeatherChanged:
		return wsOutboundEvent{Type: "weather_changed", Data: ev.Weather, At: ev.At}, true
	case BroadcastBinsChanged:
		return wsOutboundEvent{Type: "bins_changed", Data: ev.Bins, At: ev.At}, true
	case BroadcastMOTDChanged:
		return wsOutboundEvent{Type: "motd_changed", Data: wsMOTDChangedData{Text: ev.Text}, At: ev.At}, true
	case BroadcastDeviceChanged:
		return wsOutboundEvent{
			Type: "device_changed",
			Data: wsDeviceChangedData{Action: ev.Action, Detail: ev.Detail},
			At:   ev.At,
		}, true
	case BroadcastConnectionChanged:
		return wsOutboundEvent{Type: "connection_changed", Data: wsConnectionChangedData{MQTT: ev.MQTT}, At: ev.At}, true
	case BroadcastRotary:
		return wsOutboundEvent{Type: "rotary", Data: wsRotaryData{Direction: ev.Direction, Fast: ev.Fast}, At: ev.At}, true
	default:
		return wsOutboundEvent{}, false
	}
}
