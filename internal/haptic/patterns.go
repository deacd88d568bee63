// Package haptic drives a DRV2605 haptic controller over I2C and maps UI
// feedback patterns onto its ROM effect library.
package haptic

import (
	"fmt"
	"strings"
)

// Pattern is a named feedback gesture.
type Pattern int

const (
	LightClick Pattern = iota
	MediumClick
	StrongClick
	DoubleClick

	MenuNavigate
	ScreenChange
	ButtonPress
	ScrollTick

	Success
	Warning
	Error
	Notification

	Startup
	Shutdown
	FactoryReset
	PeakReached
)

var patternNames = map[Pattern]string{
	LightClick:   "light_click",
	MediumClick:  "medium_click",
	StrongClick:  "strong_click",
	DoubleClick:  "double_click",
	MenuNavigate: "menu_navigate",
	ScreenChange: "screen_change",
	ButtonPress:  "button_press",
	ScrollTick:   "scroll_tick",
	Success:      "success",
	Warning:      "warning",
	Error:        "error",
	Notification: "notification",
	Startup:      "startup",
	Shutdown:     "shutdown",
	FactoryReset: "factory_reset",
	PeakReached:  "peak_reached",
}

func (p Pattern) String() string {
	if s, ok := patternNames[p]; ok {
		return s
	}
	return fmt.Sprintf("pattern(%d)", int(p))
}

// ParsePattern resolves a pattern by its String name.
func ParsePattern(s string) (Pattern, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range patternNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown haptic pattern %q", s)
}

// Patterns lists every pattern in declaration order.
func Patterns() []Pattern {
	out := make([]Pattern, 0, len(patternNames))
	for p := LightClick; p <= PeakReached; p++ {
		out = append(out, p)
	}
	return out
}

// DRV2605 ROM library A effect IDs used by the patterns.
const (
	effectStrongClick uint8 = 1
	effectSharpClick  uint8 = 2
	effectDoubleClick uint8 = 10
	effectSoftBump    uint8 = 14
	effectBuzz        uint8 = 17
	effectAlert       uint8 = 36
	effectSharpPulse  uint8 = 47
)

// maxSequence is the number of waveform sequencer slots on the chip.
const maxSequence = 8

var sequences = map[Pattern][]uint8{
	LightClick:   {effectSoftBump},
	MediumClick:  {effectSharpClick},
	StrongClick:  {effectStrongClick},
	DoubleClick:  {effectDoubleClick},
	MenuNavigate: {effectSoftBump},
	ScreenChange: {effectSharpClick},
	ButtonPress:  {effectStrongClick},
	ScrollTick:   {effectSoftBump},
	Success:      {effectSharpPulse},
	Warning:      {effectBuzz},
	Error:        {effectAlert},
	Notification: {effectBuzz, effectSoftBump},
	Startup:      {effectDoubleClick, effectSharpClick},
	Shutdown:     {effectSharpClick, effectSoftBump},
	FactoryReset: {effectAlert, effectAlert, effectStrongClick},
	PeakReached:  {effectSharpPulse},
}

// Sequence returns the effect IDs a pattern plays, in order.
func (p Pattern) Sequence() []uint8 {
	return sequences[p]
}
