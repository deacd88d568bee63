package main

import (
	"strconv"
	"strings"
	"time"

	"knobd/internal/haptic"
	"knobd/internal/rotary"
)

// The reducer computes the next DaemonState plus the Commands and
// StateBroadcasts an event calls for. It performs no I/O and never blocks;
// runDaemon executes the commands and feeds observations back in.

// ReducerConfig is the UI policy the reducer applies.
type ReducerConfig struct {
	// Fast-spin detection. A zero threshold disables it.
	VelocityWindow    time.Duration
	VelocityThreshold int
}

// ReduceResult is the output of Reduce: next state, commands to execute and
// broadcasts for WebSocket clients.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// reduction accumulates the output of one Reduce call.
type reduction struct {
	s      *DaemonState
	cfg    ReducerConfig
	cmds   []Command
	bcasts []StateBroadcast
}

func (r *reduction) emit(c ...Command)             { r.cmds = append(r.cmds, c...) }
func (r *reduction) broadcast(b ...StateBroadcast) { r.bcasts = append(r.bcasts, b...) }

// haptic requests a pattern when the user has haptics enabled.
func (r *reduction) haptic(p haptic.Pattern) {
	if r.s.Settings.HapticEnabled {
		r.emit(CmdPlayHaptic{Pattern: p})
	}
}

// Reduce is the pure reducer. It mutates and returns s (allocating one when
// nil) and must only be called from the daemon goroutine.
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = &DaemonState{Weather: defaultWeather()}
	}
	r := &reduction{s: s, cfg: cfg}

	at := s.Now
	if te, ok := e.(TimedEvent); ok {
		e = te.Event
		if !te.At.IsZero() {
			at = te.At
		}
	}
	if at.After(s.Now) {
		s.Now = at
	}

	switch ev := e.(type) {
	case Tick:
		if ev.Now.After(s.Now) {
			s.Now = ev.Now
		}
		r.tick(ev.Now)

	// Knob
	case RotaryInput:
		r.input(ev.Input, at)
	case RotateKnob:
		switch strings.ToLower(ev.Direction) {
		case "cw", "clockwise", "next":
			r.input(rotary.Clockwise, at)
		case "ccw", "counterclockwise", "prev", "previous":
			r.input(rotary.CounterClockwise, at)
		}
	case PressButton:
		r.input(rotary.ButtonPress, at)

	// Control
	case SetScreen:
		if sc, err := parseScreen(ev.Screen); err == nil {
			r.gotoScreen(sc, at)
			r.haptic(haptic.ScreenChange)
		}
	case SetBrightness:
		if ev.Brightness >= 0 && ev.Brightness <= 100 {
			s.Settings.Brightness = ev.Brightness
			r.settingsChanged(at)
		}
	case SetHaptic:
		if on, ok := parseHapticMode(ev.Mode, s.Settings.HapticEnabled); ok {
			r.setHaptic(on, at)
		}
	case DeviceCommand:
		r.deviceCommand(ev.Command, at)
	case PlayHaptic:
		if p, err := haptic.ParsePattern(ev.Pattern); err == nil {
			r.haptic(p)
		}

	// Feeds
	case EnergyReading:
		next, out, err := s.Energy.applyReading(ev.Field, ev.Watts, at)
		if err != nil {
			break
		}
		s.Energy = next
		if out.Changed {
			r.broadcast(BroadcastEnergyChanged{Energy: s.energySnapshot(), At: at})
		}
		if out.PeakReached {
			r.haptic(haptic.PeakReached)
		}
	case TariffChanged:
		var changed bool
		if s.Energy, changed = s.Energy.applyTariff(ev.Tariff); changed {
			r.broadcast(BroadcastEnergyChanged{Energy: s.energySnapshot(), At: at})
		}
	case TemperatureReading:
		var changed bool
		if s.Weather, changed = s.Weather.applyTemperature(ev.Celsius, at); changed {
			r.broadcastWeather(at)
		}
	case HumidityReading:
		var changed bool
		if s.Weather, changed = s.Weather.applyHumidity(ev.Percent, at); changed {
			r.broadcastWeather(at)
		}
	case FrostRiskReading:
		var changed bool
		if s.Weather, changed = s.Weather.applyFrostRisk(ev.Active, at); changed {
			r.broadcastWeather(at)
			if ev.Active {
				r.haptic(haptic.Notification)
			}
		}
	case BinScheduleReceived:
		s.Bins = binsFromSchedule(ev.Schedule, at)
		r.broadcast(BroadcastBinsChanged{Bins: s.binsSnapshot(), At: at})
	case MOTDReceived:
		if ev.Text != s.MOTD.Text {
			s.MOTD = MOTDState{Text: ev.Text, At: at}
			r.broadcast(BroadcastMOTDChanged{Text: ev.Text, At: at})
		}

	// Observations
	case MQTTConnectionChanged:
		if ev.At.IsZero() {
			ev.At = at
		}
		s.MQTTConnected = ev.Connected
		r.broadcast(BroadcastConnectionChanged{MQTT: ev.Connected, At: ev.At})
		r.publishDeviceStatus()
	case RequestStateSnapshot:
		r.emit(CmdPublishStateSnapshot{Reply: ev.Reply, Snapshot: s.snapshot()})
	case CommandFailed, SettingsSaved:
		// Nothing to reconcile; effects already logged.

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:      s,
		Commands:   r.cmds,
		Broadcasts: r.bcasts,
	}
}

// ============================================================================
// Time
// ============================================================================

func (r *reduction) tick(now time.Time) {
	s := r.s

	if !s.Menu.ResetPendingUntil.IsZero() && !now.Before(s.Menu.ResetPendingUntil) {
		s.Menu.ResetPendingUntil = time.Time{}
		r.broadcast(BroadcastDeviceChanged{Action: "factory_reset_cancelled", Detail: "timeout", At: now})
		r.broadcastScreen(s.Screen, now)
	}

	var rolled bool
	s.Energy, rolled = s.Energy.rollover(now)
	if s.Energy.Stale(now) && !s.Energy.StaleReported {
		s.Energy.StaleReported = true
		rolled = true
	}
	if rolled {
		r.broadcast(BroadcastEnergyChanged{Energy: s.energySnapshot(), At: now})
	}
}

// ============================================================================
// Knob
// ============================================================================

func (r *reduction) input(in rotary.Event, at time.Time) {
	switch in {
	case rotary.Clockwise, rotary.CounterClockwise:
		r.rotate(in, at)
	case rotary.ButtonPress:
		r.press(at)
	}
}

func (r *reduction) rotate(in rotary.Event, at time.Time) {
	s := r.s
	dir := in.Direction()

	var n int
	s.Rotary.RecentSteps, n = recordRotaryStep(s.Rotary.RecentSteps, dir, at, r.cfg.VelocityWindow)
	fast := isFastSpin(n, r.cfg)
	r.broadcast(BroadcastRotary{Direction: in.String(), Fast: fast, At: at})

	step := func(p haptic.Pattern) {
		if fast {
			p = haptic.ScrollTick
		}
		r.haptic(p)
	}

	if s.Screen == ScreenSettings && s.Menu.Active {
		if !s.Menu.ResetPendingUntil.IsZero() {
			s.Menu.ResetPendingUntil = time.Time{}
			r.broadcast(BroadcastDeviceChanged{Action: "factory_reset_cancelled", Detail: "rotation", At: at})
		}
		s.Menu.Selected = s.Menu.Selected.step(dir)
		r.broadcastScreen(s.Screen, at)
		step(haptic.MenuNavigate)
		return
	}

	r.gotoScreen(s.Screen.step(dir), at)
	step(haptic.ScreenChange)
}

func (r *reduction) press(at time.Time) {
	s := r.s
	switch s.Screen {
	case ScreenHello:
		// No action.
	case ScreenSettings:
		r.settingsPress(at)
	case ScreenClock:
		s.Settings.Clock24h = !s.Settings.Clock24h
		r.settingsChanged(at)
		r.haptic(haptic.ButtonPress)
	case ScreenEnergy:
		s.EnergyView = s.EnergyView.next()
		r.broadcast(BroadcastEnergyChanged{Energy: s.energySnapshot(), At: at})
		r.haptic(haptic.ButtonPress)
	case ScreenWeather:
		r.broadcastWeather(at)
		r.haptic(haptic.ButtonPress)
	case ScreenHouse:
		r.broadcast(
			BroadcastBinsChanged{Bins: s.binsSnapshot(), At: at},
			BroadcastMOTDChanged{Text: s.MOTD.Text, At: at},
		)
		r.haptic(haptic.ButtonPress)
	}
}

func (r *reduction) settingsPress(at time.Time) {
	s := r.s
	if !s.Menu.Active {
		s.Menu = MenuState{Active: true, Selected: MenuWiFiReset}
		r.broadcastScreen(s.Screen, at)
		r.haptic(haptic.ButtonPress)
		return
	}

	switch s.Menu.Selected {
	case MenuWiFiReset:
		r.broadcast(BroadcastDeviceChanged{Action: "wifi_reset", Detail: "unsupported", At: at})
		r.haptic(haptic.Warning)

	case MenuBrightness:
		s.Settings.Brightness = nextBrightness(s.Settings.Brightness)
		r.settingsChanged(at)
		r.haptic(haptic.ButtonPress)

	case MenuHaptic:
		r.setHaptic(!s.Settings.HapticEnabled, at)
		r.haptic(haptic.ButtonPress)

	case MenuFactoryReset:
		if s.Menu.resetPending(at) {
			r.factoryReset(at)
			return
		}
		s.Menu.ResetPendingUntil = at.Add(factoryResetConfirmWindow)
		r.broadcast(BroadcastDeviceChanged{Action: "factory_reset_pending", Detail: "press again to confirm", At: at})
		r.broadcastScreen(s.Screen, at)
		r.haptic(haptic.Warning)

	case MenuExit:
		s.Menu = MenuState{}
		r.broadcastScreen(s.Screen, at)
		r.haptic(haptic.ButtonPress)
	}
}

// ============================================================================
// Screens and settings
// ============================================================================

func (r *reduction) gotoScreen(next Screen, at time.Time) {
	prev := r.s.Screen
	r.s.Screen = next
	if next != ScreenSettings {
		r.s.Menu = MenuState{}
	}
	r.broadcast(BroadcastScreenChanged{
		Screen:   next.String(),
		Previous: prev.String(),
		Menu:     r.s.menuSnapshot(),
		At:       at,
	})
}

// broadcastScreen re-announces the current screen after a menu change.
func (r *reduction) broadcastScreen(sc Screen, at time.Time) {
	r.broadcast(BroadcastScreenChanged{
		Screen:   sc.String(),
		Previous: sc.String(),
		Menu:     r.s.menuSnapshot(),
		At:       at,
	})
}

func (r *reduction) broadcastWeather(at time.Time) {
	r.broadcast(BroadcastWeatherChanged{Weather: r.s.weatherSnapshot(), At: at})
}

// settingsChanged persists, announces and publishes the current settings.
func (r *reduction) settingsChanged(at time.Time) {
	r.emit(CmdSaveSettings{Settings: r.s.Settings})
	r.broadcast(BroadcastSettingsChanged{Settings: r.s.Settings, At: at})
	r.publishDeviceStatus()
}

func (r *reduction) setHaptic(on bool, at time.Time) {
	r.s.Settings.HapticEnabled = on
	r.emit(CmdApplyHaptic{Enabled: on})
	r.settingsChanged(at)
}

func (r *reduction) factoryReset(at time.Time) {
	s := r.s
	s.Settings = DefaultSettings()
	s.Menu = MenuState{}
	r.emit(CmdFactoryReset{}, CmdApplyHaptic{Enabled: s.Settings.HapticEnabled})
	r.broadcast(
		BroadcastDeviceChanged{Action: "factory_reset", At: at},
		BroadcastSettingsChanged{Settings: s.Settings, At: at},
	)
	r.broadcastScreen(s.Screen, at)
	r.publishDeviceStatus()
	r.haptic(haptic.FactoryReset)
}

func (r *reduction) deviceCommand(cmd string, at time.Time) {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "reboot", "restart":
		r.broadcast(BroadcastDeviceChanged{Action: "reboot", At: at})
		r.haptic(haptic.Shutdown)
		r.emit(CmdReboot{})
	case "factory_reset":
		r.factoryReset(at)
	case "wifi_reset":
		r.broadcast(BroadcastDeviceChanged{Action: "wifi_reset", Detail: "unsupported", At: at})
	case "status":
		if r.s.MQTTConnected {
			r.emit(CmdPublishStatus{Status: r.s.deviceStatus()})
		}
	}
}

// publishDeviceStatus republishes brightness, haptic and the status document
// while the broker is reachable.
func (r *reduction) publishDeviceStatus() {
	s := r.s
	if !s.MQTTConnected {
		return
	}
	hapticState := "off"
	if s.Settings.HapticEnabled {
		hapticState = "on"
	}
	r.emit(
		CmdPublish{Topic: topicBrightnessStatus, Payload: strconv.Itoa(s.Settings.Brightness)},
		CmdPublish{Topic: topicHapticStatus, Payload: hapticState},
		CmdPublishStatus{Status: s.deviceStatus()},
	)
}

// parseHapticMode maps a haptic command onto the new enabled state.
func parseHapticMode(mode string, current bool) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "on", "true", "1", "enable":
		return true, true
	case "off", "false", "0", "disable":
		return false, true
	case "toggle":
		return !current, true
	default:
		return current, false
	}
}
