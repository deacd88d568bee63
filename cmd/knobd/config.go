package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"knobd/internal/mqttbus"
	"knobd/internal/rotary"
)

// Config is the top-level YAML configuration for knobd.
//
// Defaults and validation live here so the rest of the daemon can assume a
// well-formed config.
type Config struct {
	Encoder EncoderConfig `yaml:"encoder"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Haptic  HapticConfig  `yaml:"haptic"`
	IPC     IPCConfig     `yaml:"ipc"`
	HTTP    HTTPConfig    `yaml:"http"`
	State   StateConfig   `yaml:"state"`
	System  SystemConfig  `yaml:"system"`
	UI      UIConfig      `yaml:"ui"`
	Logging LoggingConfig `yaml:"logging"`
}

type EncoderConfig struct {
	// Backend is "gpiocdev" (GPIO character device) or "virtual" (IPC only).
	Backend   string `yaml:"backend"`
	Chip      string `yaml:"chip"`
	PinA      int    `yaml:"pin_a"`
	PinB      int    `yaml:"pin_b"`
	PinButton int    `yaml:"pin_button"` // -1 disables the push button

	InvertDirection    bool `yaml:"invert_direction"`
	RotationDebounceMS int  `yaml:"rotation_debounce_ms"`
	ButtonDebounceMS   int  `yaml:"button_debounce_ms"`
	QueueCapacity      int  `yaml:"queue_capacity"`
	PollIntervalMS     int  `yaml:"poll_interval_ms"`
}

type MQTTConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	Username     string `yaml:"username,omitempty"`
	PasswordFile string `yaml:"password_file,omitempty"`

	KeepAliveSec      int      `yaml:"keepalive_sec"`
	RetryIntervalSec  int      `yaml:"retry_interval_sec"`
	AvailabilityTopic string   `yaml:"availability_topic"`
	ExtraTopics       []string `yaml:"extra_topics,omitempty"`
}

type HapticConfig struct {
	// Enabled controls whether the DRV2605 is opened at all.
	Enabled   bool   `yaml:"enabled"`
	Bus       string `yaml:"bus"`
	Intensity int    `yaml:"intensity"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Port int `yaml:"port"` // 0 disables the HTTP server
}

type StateConfig struct {
	Path string `yaml:"path"`
}

type SystemConfig struct {
	// RebootCommand is run for the reboot device command. Empty disables reboot.
	RebootCommand []string `yaml:"reboot_command,omitempty"`
}

type UIConfig struct {
	TickHz            int    `yaml:"tick_hz"`
	StartScreen       string `yaml:"start_screen"`
	VelocityWindowMS  int    `yaml:"velocity_window_ms"`
	VelocityThreshold int    `yaml:"velocity_threshold"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Encoder: EncoderConfig{
			Backend:            "gpiocdev",
			Chip:               defaultGPIOChip,
			PinA:               defaultPinA,
			PinB:               defaultPinB,
			PinButton:          defaultPinButton,
			RotationDebounceMS: int(rotary.DefaultRotationDebounce / time.Millisecond),
			ButtonDebounceMS:   int(rotary.DefaultButtonDebounce / time.Millisecond),
			QueueCapacity:      rotary.DefaultQueueCapacity,
			PollIntervalMS:     int(rotary.DefaultPollInterval / time.Millisecond),
		},
		MQTT: MQTTConfig{
			Enabled:           false,
			Broker:            "tcp://127.0.0.1:1883",
			ClientID:          defaultMQTTClientID,
			KeepAliveSec:      int(mqttbus.DefaultKeepAlive / time.Second),
			RetryIntervalSec:  int(mqttbus.DefaultRetryInterval / time.Second),
			AvailabilityTopic: topicAvailability,
		},
		Haptic: HapticConfig{
			Enabled:   true,
			Bus:       defaultI2CBus,
			Intensity: 80,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		HTTP: HTTPConfig{
			Port: defaultHTTPPort,
		},
		State: StateConfig{
			Path: defaultStatePath,
		},
		UI: UIConfig{
			TickHz:            defaultTickHz,
			StartScreen:       ScreenHello.String(),
			VelocityWindowMS:  defaultVelocityWindowMS,
			VelocityThreshold: defaultVelocityThreshold,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file over DefaultConfig.
// Unknown fields are rejected to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds flag values applied on top of the file config.
// A nil pointer means the flag was not set.
type FlagOverrides struct {
	EncoderBackend *string
	GPIOChip       *string
	InvertDir      *bool

	MQTTBroker  *string
	MQTTEnabled *bool

	HapticEnabled *bool
	HapticBus     *string

	IPCSocketPath *string
	HTTPPort      *int
	StatePath     *string

	LogLevel *string
}

// Apply merges the overrides into cfg. A non-nil pointer is applied even when
// it holds a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.EncoderBackend != nil {
		cfg.Encoder.Backend = *o.EncoderBackend
	}
	if o.GPIOChip != nil {
		cfg.Encoder.Chip = *o.GPIOChip
	}
	if o.InvertDir != nil {
		cfg.Encoder.InvertDirection = *o.InvertDir
	}
	if o.MQTTBroker != nil {
		cfg.MQTT.Broker = *o.MQTTBroker
		cfg.MQTT.Enabled = *o.MQTTBroker != ""
	}
	if o.MQTTEnabled != nil {
		cfg.MQTT.Enabled = *o.MQTTEnabled
	}
	if o.HapticEnabled != nil {
		cfg.Haptic.Enabled = *o.HapticEnabled
	}
	if o.HapticBus != nil {
		cfg.Haptic.Bus = *o.HapticBus
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.StatePath != nil {
		cfg.State.Path = *o.StatePath
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	// Encoder
	switch c.Encoder.Backend {
	case "gpiocdev":
		if c.Encoder.Chip == "" {
			return errors.New("encoder.chip must not be empty")
		}
	case "virtual":
	default:
		return fmt.Errorf("encoder.backend must be %q or %q", "gpiocdev", "virtual")
	}
	if c.Encoder.PinA < 0 || c.Encoder.PinB < 0 {
		return errors.New("encoder.pin_a and encoder.pin_b must be >= 0")
	}
	if c.Encoder.PinA == c.Encoder.PinB {
		return errors.New("encoder.pin_a and encoder.pin_b must differ")
	}
	if c.Encoder.PinButton < rotary.NoPin {
		return errors.New("encoder.pin_button must be >= 0, or -1 to disable")
	}
	if c.Encoder.PinButton == c.Encoder.PinA || c.Encoder.PinButton == c.Encoder.PinB {
		return errors.New("encoder.pin_button must differ from encoder.pin_a and encoder.pin_b")
	}
	if c.Encoder.RotationDebounceMS < 0 {
		return errors.New("encoder.rotation_debounce_ms must be >= 0")
	}
	if c.Encoder.ButtonDebounceMS < 0 {
		return errors.New("encoder.button_debounce_ms must be >= 0")
	}
	if c.Encoder.QueueCapacity < 0 {
		return errors.New("encoder.queue_capacity must be >= 0")
	}
	if c.Encoder.PollIntervalMS < 0 {
		return errors.New("encoder.poll_interval_ms must be >= 0")
	}

	// MQTT
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.enabled is true but mqtt.broker is empty")
		}
		if c.MQTT.ClientID == "" {
			return errors.New("mqtt.client_id must not be empty")
		}
	}
	if c.MQTT.KeepAliveSec < 0 || c.MQTT.RetryIntervalSec < 0 {
		return errors.New("mqtt.keepalive_sec and mqtt.retry_interval_sec must be >= 0")
	}
	if len(c.MQTT.ExtraTopics) > mqttbus.MaxDynamicTopics {
		return fmt.Errorf("mqtt.extra_topics allows at most %d topics", mqttbus.MaxDynamicTopics)
	}
	for i, t := range c.MQTT.ExtraTopics {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("mqtt.extra_topics[%d] is empty", i)
		}
	}

	// Haptic
	if c.Haptic.Intensity < 0 || c.Haptic.Intensity > 100 {
		return errors.New("haptic.intensity must be between 0 and 100")
	}

	// Surfaces
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}
	if c.State.Path == "" {
		return errors.New("state.path must not be empty")
	}

	// UI
	if c.UI.TickHz <= 0 || c.UI.TickHz > 100 {
		return errors.New("ui.tick_hz must be between 1 and 100")
	}
	if _, err := parseScreen(c.UI.StartScreen); err != nil {
		return fmt.Errorf("ui.start_screen: %w", err)
	}
	if c.UI.VelocityWindowMS < 0 {
		return errors.New("ui.velocity_window_ms must be >= 0")
	}
	if c.UI.VelocityThreshold < 0 {
		return errors.New("ui.velocity_threshold must be >= 0")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ToRotaryConfig converts the encoder section into the decoder's config.
func (c *Config) ToRotaryConfig() rotary.Config {
	return rotary.Config{
		PinA:             c.Encoder.PinA,
		PinB:             c.Encoder.PinB,
		PinButton:        c.Encoder.PinButton,
		InvertDirection:  c.Encoder.InvertDirection,
		RotationDebounce: time.Duration(c.Encoder.RotationDebounceMS) * time.Millisecond,
		ButtonDebounce:   time.Duration(c.Encoder.ButtonDebounceMS) * time.Millisecond,
		QueueCapacity:    c.Encoder.QueueCapacity,
	}
}

// ToReducerConfig extracts the reducer's UI policy.
func (c *Config) ToReducerConfig() ReducerConfig {
	return ReducerConfig{
		VelocityWindow:    time.Duration(c.UI.VelocityWindowMS) * time.Millisecond,
		VelocityThreshold: c.UI.VelocityThreshold,
	}
}

// ToMQTTOptions builds the MQTT manager options. The password is read from
// mqtt.password_file when set.
func (c *Config) ToMQTTOptions() (mqttbus.Options, error) {
	opts := mqttbus.Options{
		Broker:            c.MQTT.Broker,
		ClientID:          c.MQTT.ClientID,
		Username:          c.MQTT.Username,
		KeepAlive:         time.Duration(c.MQTT.KeepAliveSec) * time.Second,
		RetryInterval:     time.Duration(c.MQTT.RetryIntervalSec) * time.Second,
		AvailabilityTopic: c.MQTT.AvailabilityTopic,
	}
	if c.MQTT.PasswordFile != "" {
		b, err := os.ReadFile(ExpandPath(c.MQTT.PasswordFile))
		if err != nil {
			return mqttbus.Options{}, fmt.Errorf("read mqtt.password_file: %w", err)
		}
		opts.Password = strings.TrimSpace(string(b))
	}
	return opts, nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
