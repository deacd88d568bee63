package main

import (
	"fmt"
	"strings"
	"time"
)

// DaemonState is the top-level, daemon-owned state container.
// Only the daemon goroutine reads or writes it; other goroutines get
// StateSnapshot copies through the event loop.
type DaemonState struct {
	Screen Screen
	Menu   MenuState

	Settings   Settings
	EnergyView EnergyView

	Energy  EnergyState
	Weather WeatherState
	Bins    BinsState
	MOTD    MOTDState

	MQTTConnected bool

	// Rotary is reducer-owned state for fast-spin detection.
	Rotary RotaryReducerState

	StartedAt time.Time
	// Now is the most recent time the reducer has seen (tick or timed event).
	Now time.Time
}

// NewDaemonState returns the boot state for the given start screen and
// persisted settings.
func NewDaemonState(start Screen, settings Settings, now time.Time) *DaemonState {
	return &DaemonState{
		Screen:    start,
		Settings:  settings,
		Weather:   defaultWeather(),
		StartedAt: now,
		Now:       now,
	}
}

// ============================================================================
// Screens
// ============================================================================

// Screen identifies one page of the UI. Rotation walks them in order.
type Screen int

const (
	ScreenHello Screen = iota
	ScreenSettings
	ScreenClock
	ScreenEnergy
	ScreenWeather
	ScreenHouse

	screenCount
)

var screenNames = [screenCount]string{
	ScreenHello:    "hello",
	ScreenSettings: "settings",
	ScreenClock:    "clock",
	ScreenEnergy:   "energy",
	ScreenWeather:  "weather",
	ScreenHouse:    "house",
}

func (s Screen) String() string {
	if s < 0 || s >= screenCount {
		return fmt.Sprintf("screen(%d)", int(s))
	}
	return screenNames[s]
}

func parseScreen(name string) (Screen, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range screenNames {
		if n == name {
			return Screen(i), nil
		}
	}
	return 0, fmt.Errorf("unknown screen %q", name)
}

// step moves dir screens forward (dir > 0) or backward, wrapping.
func (s Screen) step(dir int) Screen {
	n := (int(s) + dir) % int(screenCount)
	if n < 0 {
		n += int(screenCount)
	}
	return Screen(n)
}

// ============================================================================
// Settings menu
// ============================================================================

type MenuItem int

const (
	MenuWiFiReset MenuItem = iota
	MenuBrightness
	MenuHaptic
	MenuFactoryReset
	MenuExit

	menuItemCount
)

var menuItemNames = [menuItemCount]string{
	MenuWiFiReset:    "wifi_reset",
	MenuBrightness:   "brightness",
	MenuHaptic:       "haptic",
	MenuFactoryReset: "factory_reset",
	MenuExit:         "exit",
}

func (m MenuItem) String() string {
	if m < 0 || m >= menuItemCount {
		return fmt.Sprintf("menu_item(%d)", int(m))
	}
	return menuItemNames[m]
}

func (m MenuItem) step(dir int) MenuItem {
	n := (int(m) + dir) % int(menuItemCount)
	if n < 0 {
		n += int(menuItemCount)
	}
	return MenuItem(n)
}

// MenuState is the settings screen's navigation state.
type MenuState struct {
	Active   bool
	Selected MenuItem

	// ResetPendingUntil is non-zero while a factory reset awaits its
	// confirming second press.
	ResetPendingUntil time.Time
}

func (m MenuState) resetPending(now time.Time) bool {
	return !m.ResetPendingUntil.IsZero() && now.Before(m.ResetPendingUntil)
}

// Settings are the user-adjustable, persisted device settings.
type Settings struct {
	Brightness    int  `yaml:"brightness" json:"brightness"`
	HapticEnabled bool `yaml:"haptic_enabled" json:"haptic"`
	Clock24h      bool `yaml:"clock_24h" json:"clock_24h"`
}

// DefaultSettings is what a factory reset restores.
func DefaultSettings() Settings {
	return Settings{
		Brightness:    defaultBrightness,
		HapticEnabled: true,
		Clock24h:      true,
	}
}

// nextBrightness returns the next step of the menu's brightness cycle.
func nextBrightness(cur int) int {
	for _, b := range brightnessSteps {
		if b > cur {
			return b
		}
	}
	return brightnessSteps[0]
}

// ============================================================================
// Energy screen view
// ============================================================================

type EnergyView int

const (
	EnergyViewLive EnergyView = iota
	EnergyViewPeaks
	EnergyViewTotals

	energyViewCount
)

func (v EnergyView) String() string {
	switch v {
	case EnergyViewLive:
		return "live"
	case EnergyViewPeaks:
		return "peaks"
	case EnergyViewTotals:
		return "totals"
	default:
		return fmt.Sprintf("energy_view(%d)", int(v))
	}
}

func (v EnergyView) next() EnergyView {
	return (v + 1) % energyViewCount
}

// ============================================================================
// Message of the day
// ============================================================================

type MOTDState struct {
	Text string
	At   time.Time
}

// ============================================================================
// Rotary velocity
// ============================================================================

// RotaryReducerState tracks recent rotary steps for fast-spin detection.
type RotaryReducerState struct {
	RecentSteps []RotaryReducerStep
}

// RotaryReducerStep is one observed step. Direction is -1 or +1.
type RotaryReducerStep struct {
	At        time.Time
	Direction int
}
