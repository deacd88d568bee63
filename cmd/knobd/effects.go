package main

import (
	"context"
	"log/slog"
	"time"

	"knobd/internal/haptic"
)

// Publisher is the MQTT side of the effects layer. *mqttbus.Manager implements it.
type Publisher interface {
	Publish(topic string, payload any, retained bool) error
}

// HapticPlayer is the haptic side. *haptic.Player implements it.
type HapticPlayer interface {
	Play(p haptic.Pattern) (bool, error)
	SetEnabled(on bool)
}

// SettingsStore persists device settings.
type SettingsStore interface {
	Save(s Settings) error
	Remove() error
	Path() string
}

// System exposes host facts and actions.
type System interface {
	Info() SystemInfo
	Reboot(ctx context.Context) error
}

// SystemInfo is what the status document reports about the host.
type SystemInfo struct {
	IP      string
	Uptime  time.Duration
	FreeMem uint64
}

// Effects bundles the external systems commands act on. Any field may be nil;
// commands that need a missing system fail with errNoBackend.
type Effects struct {
	Publisher Publisher
	Haptics   HapticPlayer
	Settings  SettingsStore
	System    System
}

const rebootTimeout = 10 * time.Second

// runEffect executes a single reducer-emitted Command and reports what it
// observed via onEvent. It never calls Reduce itself.
func runEffect(
	fx *Effects,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		return
	}
	if fx == nil {
		fx = &Effects{}
	}

	now := time.Now()
	fail := func(err error, args ...any) {
		logger.Error("command failed", append([]any{"command", cmd.String(), "error", err}, args...)...)
		onEvent(CommandFailed{Command: cmd, Err: err, At: now})
	}

	switch c := cmd.(type) {
	case CmdPublish:
		if fx.Publisher == nil {
			fail(errNoBackend{"mqtt"})
			return
		}
		if err := fx.Publisher.Publish(c.Topic, c.Payload, c.Retained); err != nil {
			fail(err, "topic", c.Topic)
		}

	case CmdPublishStatus:
		if fx.Publisher == nil {
			fail(errNoBackend{"mqtt"})
			return
		}
		st := c.Status
		if fx.System != nil {
			info := fx.System.Info()
			st.WiFi = info.IP != ""
			st.IP = info.IP
			st.Uptime = int64(info.Uptime / time.Second)
			st.FreeMem = info.FreeMem
		}
		if err := fx.Publisher.Publish(topicStatus, st, true); err != nil {
			fail(err, "topic", topicStatus)
			return
		}
		logger.Debug("published device status", "screen", st.Screen, "brightness", st.Brightness)

	case CmdPlayHaptic:
		if fx.Haptics == nil {
			return // no actuator fitted
		}
		if _, err := fx.Haptics.Play(c.Pattern); err != nil {
			fail(err, "pattern", c.Pattern.String())
		}

	case CmdApplyHaptic:
		if fx.Haptics != nil {
			fx.Haptics.SetEnabled(c.Enabled)
		}

	case CmdSaveSettings:
		if fx.Settings == nil {
			fail(errNoBackend{"settings store"})
			return
		}
		if err := fx.Settings.Save(c.Settings); err != nil {
			fail(err, "path", fx.Settings.Path())
			return
		}
		onEvent(SettingsSaved{Path: fx.Settings.Path(), At: now})

	case CmdFactoryReset:
		if fx.Settings == nil {
			fail(errNoBackend{"settings store"})
			return
		}
		if err := fx.Settings.Remove(); err != nil {
			fail(err, "path", fx.Settings.Path())
			return
		}
		logger.Info("factory reset: settings removed", "path", fx.Settings.Path())

	case CmdReboot:
		if fx.System == nil {
			fail(errNoBackend{"system"})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), rebootTimeout)
		defer cancel()
		if err := fx.System.Reboot(ctx); err != nil {
			fail(err)
		}

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		// Never block the daemon loop on a slow requester.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(CommandFailed{Command: cmd, Err: errUnknownCommand{cmd: cmd}, At: now})
	}
}

// errNoBackend indicates a command needs a system that is not configured.
type errNoBackend struct{ name string }

func (e errNoBackend) Error() string { return "no " + e.name + " configured" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
