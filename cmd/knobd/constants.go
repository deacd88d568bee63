package main

import "time"

// ============================================================================
// Defaults
// ============================================================================

const (
	defaultSocketPath   = "/tmp/knobd.sock"
	defaultHTTPPort     = 3002
	defaultStatePath    = "/var/lib/knobd/settings.yaml"
	defaultTickHz       = 10
	defaultGPIOChip     = "gpiochip0"
	defaultPinA         = 17
	defaultPinB         = 27
	defaultPinButton    = 22
	defaultI2CBus       = "1"
	defaultMQTTClientID = "knobd"

	// Fast-spin detection: this many same-direction steps inside the window.
	defaultVelocityWindowMS  = 200
	defaultVelocityThreshold = 3
)

// Settings menu.
const (
	factoryResetConfirmWindow = 5 * time.Second
	defaultBrightness         = 100
)

// brightnessSteps is the cycle used by the settings menu.
var brightnessSteps = []int{25, 50, 75, 100}

// Energy feed.
const (
	energyMaxAbsWatts   = 20000.0
	energyStaleAfter    = 5 * time.Minute
	energyMaxTotalGap   = time.Hour
	energyPeakHapticMin = 100.0 // watts above the previous daily peak
)

// Weather feed.
const (
	defaultTemperature  = 18.5
	defaultHumidity     = 45.0
	temperatureMinDelta = 0.1
	humidityMinDelta    = 0.5
)

// MQTT topics published by the daemon.
const (
	topicStatus           = "home/knob/status"
	topicBrightnessStatus = "home/knob/brightness/status"
	topicHapticStatus     = "home/knob/haptic/status"
	topicAvailability     = "home/knob/availability"
)

// MQTT namespaces handled by feeds.go.
const (
	nsDevice  = "home/knob"
	nsEnergy  = "emon/emontx3"
	nsWeather = "home/weather"
	nsBins    = "home/bins"
	nsMOTD    = "home/motd"
)
