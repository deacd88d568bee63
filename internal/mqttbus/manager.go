package mqttbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	DefaultQoS            byte = 1
	DefaultRetryInterval       = 30 * time.Second
	DefaultKeepAlive           = 60 * time.Second
	DefaultConnectTimeout      = 10 * time.Second

	tokenTimeout = 5 * time.Second
)

// ErrNotConnected is returned by Publish while the broker connection is down.
var ErrNotConnected = errors.New("mqttbus: not connected")

// Options configures a Manager.
type Options struct {
	Broker   string // e.g. tcp://192.168.1.10:1883
	ClientID string
	Username string
	Password string

	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	RetryInterval  time.Duration
	QoS            byte

	// Topics subscribed on every connect. Nil means DefaultTopics.
	Topics []string

	// AvailabilityTopic receives a retained "online" on connect and is the
	// last-will topic ("offline"). Empty disables both.
	AvailabilityTopic string

	// OnConnectionChange is called after every connect and connection loss.
	OnConnectionChange func(connected bool)
}

func (o Options) withDefaults() Options {
	if o.ClientID == "" {
		o.ClientID = "knobd"
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.QoS == 0 {
		o.QoS = DefaultQoS
	}
	if o.Topics == nil {
		o.Topics = DefaultTopics
	}
	return o
}

// Manager owns the broker connection: it (re)subscribes the topic set on every
// connect, routes messages through a Router and publishes on behalf of the daemon.
type Manager struct {
	client mqtt.Client
	opts   Options
	router *Router
	topics *topicSet
	logger *slog.Logger

	connected     atomic.Bool
	statusChanged atomic.Bool
}

// NewManager builds a paho client for opts. Call Run to connect.
func NewManager(opts Options, router *Router, logger *slog.Logger) (*Manager, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqttbus: broker must not be empty")
	}
	if router == nil {
		return nil, errors.New("mqttbus: router must not be nil")
	}
	opts = opts.withDefaults()

	m := newManager(opts, router, logger)

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.SetKeepAlive(opts.KeepAlive)
	co.SetConnectTimeout(opts.ConnectTimeout)
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(opts.RetryInterval)
	co.SetMaxReconnectInterval(opts.RetryInterval)
	co.SetCleanSession(true)
	if opts.AvailabilityTopic != "" {
		co.SetWill(opts.AvailabilityTopic, "offline", opts.QoS, true)
	}
	co.SetDefaultPublishHandler(m.onMessage)
	co.SetOnConnectHandler(func(mqtt.Client) { m.handleConnect() })
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) { m.handleConnectionLost(err) })
	co.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		m.logger.Info("mqtt reconnecting", "broker", opts.Broker)
	})

	m.client = mqtt.NewClient(co)
	return m, nil
}

func newManager(opts Options, router *Router, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		opts:   opts,
		router: router,
		topics: newTopicSet(opts.Topics),
		logger: logger,
	}
}

// Run connects (retrying every RetryInterval) and stays connected until ctx is
// canceled, then announces "offline" and disconnects.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("mqtt connecting", "broker", m.opts.Broker, "client_id", m.opts.ClientID)

	token := m.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	case <-ctx.Done():
	}

	<-ctx.Done()
	m.Close()
	return nil
}

// Close publishes "offline" (when connected) and disconnects.
func (m *Manager) Close() {
	if m.opts.AvailabilityTopic != "" && m.client.IsConnected() {
		t := m.client.Publish(m.opts.AvailabilityTopic, m.opts.QoS, true, "offline")
		t.WaitTimeout(time.Second)
	}
	m.client.Disconnect(250)
	m.connected.Store(false)
	m.logger.Info("mqtt disconnected")
}

func (m *Manager) handleConnect() {
	m.connected.Store(true)
	m.statusChanged.Store(true)
	m.logger.Info("mqtt connected", "broker", m.opts.Broker)

	for _, topic := range m.topics.all() {
		m.subscribe(topic)
	}

	if m.opts.AvailabilityTopic != "" {
		t := m.client.Publish(m.opts.AvailabilityTopic, m.opts.QoS, true, "online")
		if !t.WaitTimeout(tokenTimeout) {
			m.logger.Warn("mqtt availability publish timed out", "topic", m.opts.AvailabilityTopic)
		} else if err := t.Error(); err != nil {
			m.logger.Warn("mqtt availability publish failed", "topic", m.opts.AvailabilityTopic, "error", err)
		}
	}

	if m.opts.OnConnectionChange != nil {
		m.opts.OnConnectionChange(true)
	}
}

func (m *Manager) handleConnectionLost(err error) {
	m.connected.Store(false)
	m.statusChanged.Store(true)
	m.logger.Warn("mqtt connection lost", "error", err)
	if m.opts.OnConnectionChange != nil {
		m.opts.OnConnectionChange(false)
	}
}

func (m *Manager) subscribe(topic string) {
	t := m.client.Subscribe(topic, m.opts.QoS, m.onMessage)
	if !t.WaitTimeout(tokenTimeout) {
		m.logger.Warn("mqtt subscribe timed out", "topic", topic)
		return
	}
	if err := t.Error(); err != nil {
		m.logger.Warn("mqtt subscribe failed", "topic", topic, "error", err)
		return
	}
	m.logger.Debug("mqtt subscribed", "topic", topic, "qos", m.opts.QoS)
}

func (m *Manager) onMessage(_ mqtt.Client, msg mqtt.Message) {
	m.logger.Debug("mqtt message", "topic", msg.Topic(), "bytes", len(msg.Payload()))
	m.router.Route(msg.Topic(), string(msg.Payload()))
}

// Publish sends payload to topic. Strings and byte slices are sent as-is,
// anything else is JSON encoded.
func (m *Manager) Publish(topic string, payload any, retained bool) error {
	if !m.connected.Load() {
		return ErrNotConnected
	}

	var body []byte
	switch v := payload.(type) {
	case string:
		body = []byte(v)
	case []byte:
		body = v
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = b
	}

	t := m.client.Publish(topic, m.opts.QoS, retained, body)
	if !t.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// AddTopic adds a runtime subscription, subscribing immediately when connected.
// It fails once MaxDynamicTopics have been added.
func (m *Manager) AddTopic(topic string) error {
	added, err := m.topics.add(topic)
	if err != nil {
		return err
	}
	if added && m.connected.Load() {
		m.subscribe(topic)
	}
	return nil
}

// Topics returns the full subscription list.
func (m *Manager) Topics() []string { return m.topics.all() }

// IsConnected reports whether the broker connection is up.
func (m *Manager) IsConnected() bool { return m.connected.Load() }

// StatusChanged reports whether the connection state changed since the last
// call, and clears the flag.
func (m *Manager) StatusChanged() bool { return m.statusChanged.Swap(false) }
