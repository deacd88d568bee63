package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadConfigFile_OverlaysDefaults(t *testing.T) {
	p := writeTempConfig(t, `
encoder:
  backend: virtual
  invert_direction: true
mqtt:
  enabled: true
  broker: tcp://10.0.0.2:1883
  extra_topics: [home/garage/door]
ui:
  start_screen: energy
`)
	cfg, err := LoadConfigFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Encoder.Backend != "virtual" || !cfg.Encoder.InvertDirection {
		t.Fatalf("encoder section not applied: %+v", cfg.Encoder)
	}
	if cfg.Encoder.PinA != defaultPinA {
		t.Fatalf("expected default pin_a to survive, got %d", cfg.Encoder.PinA)
	}
	if cfg.MQTT.ClientID != defaultMQTTClientID {
		t.Fatalf("expected default client id, got %q", cfg.MQTT.ClientID)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadConfigFile_RejectsUnknownFieldsAndTrailingDocs(t *testing.T) {
	if _, err := LoadConfigFile(writeTempConfig(t, "encoder:\n  pin_c: 5\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := LoadConfigFile(writeTempConfig(t, "http:\n  port: 8080\n---\nhttp:\n  port: 9090\n")); err == nil {
		t.Fatalf("expected trailing document error")
	}
	if _, err := LoadConfigFile(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	broker := "tcp://broker:1883"
	port := 0
	level := "debug"

	FlagOverrides{MQTTBroker: &broker, HTTPPort: &port, LogLevel: &level}.Apply(&cfg)

	if !cfg.MQTT.Enabled || cfg.MQTT.Broker != broker {
		t.Fatalf("broker override should enable mqtt: %+v", cfg.MQTT)
	}
	if cfg.HTTP.Port != 0 {
		t.Fatalf("explicit zero port must be applied, got %d", cfg.HTTP.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level not applied")
	}

	empty := ""
	FlagOverrides{MQTTBroker: &empty}.Apply(&cfg)
	if cfg.MQTT.Enabled {
		t.Fatalf("empty broker override should disable mqtt")
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.Encoder.Backend = "spi" }, "encoder.backend"},
		{"same pins", func(c *Config) { c.Encoder.PinB = c.Encoder.PinA }, "must differ"},
		{"button pin", func(c *Config) { c.Encoder.PinButton = c.Encoder.PinA }, "encoder.pin_button"},
		{"broker", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }, "mqtt.broker"},
		{"intensity", func(c *Config) { c.Haptic.Intensity = 120 }, "haptic.intensity"},
		{"tick", func(c *Config) { c.UI.TickHz = 0 }, "ui.tick_hz"},
		{"screen", func(c *Config) { c.UI.StartScreen = "garden" }, "ui.start_screen"},
		{"extra topics", func(c *Config) { c.MQTT.ExtraTopics = []string{" "} }, "mqtt.extra_topics"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestConfig_Conversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Encoder.RotationDebounceMS = 3
	cfg.UI.VelocityWindowMS = 150

	rc := cfg.ToRotaryConfig()
	if rc.RotationDebounce != 3*time.Millisecond || rc.PinButton != defaultPinButton {
		t.Fatalf("unexpected rotary config: %+v", rc)
	}
	if err := rc.Validate(); err != nil {
		t.Fatalf("rotary config invalid: %v", err)
	}

	if got := cfg.ToReducerConfig().VelocityWindow; got != 150*time.Millisecond {
		t.Fatalf("unexpected velocity window %v", got)
	}

	pw := filepath.Join(t.TempDir(), "pw")
	if err := os.WriteFile(pw, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.MQTT.Username = "knob"
	cfg.MQTT.PasswordFile = pw
	opts, err := cfg.ToMQTTOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Password != "s3cret" || opts.Username != "knob" || opts.RetryInterval != 30*time.Second {
		t.Fatalf("unexpected mqtt options: %+v", opts)
	}

	cfg.MQTT.PasswordFile = filepath.Join(t.TempDir(), "missing")
	if _, err := cfg.ToMQTTOptions(); err == nil {
		t.Fatalf("expected error for missing password file")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/knobd.yaml"); got != filepath.Join(home, "knobd.yaml") {
		t.Fatalf("unexpected expansion %q", got)
	}
	if got := ExpandPath("/etc/knobd.yaml"); got != "/etc/knobd.yaml" {
		t.Fatalf("absolute path changed: %q", got)
	}
}
