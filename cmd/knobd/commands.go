package main

import (
	"fmt"

	"knobd/internal/haptic"
)

// ==============================
// Commands (side effects)
// ==============================

// Command is a side effect requested by the reducer and executed by runEffect.
type Command interface {
	commandMarker()
	String() string
}

// CmdPublish publishes a raw MQTT message.
type CmdPublish struct {
	Topic    string
	Payload  string
	Retained bool
}

func (CmdPublish) commandMarker() {}
func (c CmdPublish) String() string {
	return fmt.Sprintf("CmdPublish(topic=%s, retained=%v)", c.Topic, c.Retained)
}

// CmdPublishStatus publishes the retained device status document. The effect
// adds the host facts (IP, uptime, free memory).
type CmdPublishStatus struct {
	Status DeviceStatus
}

func (CmdPublishStatus) commandMarker() {}
func (CmdPublishStatus) String() string { return "CmdPublishStatus()" }

// CmdPlayHaptic plays a feedback pattern.
type CmdPlayHaptic struct {
	Pattern haptic.Pattern
}

func (CmdPlayHaptic) commandMarker() {}
func (c CmdPlayHaptic) String() string {
	return fmt.Sprintf("CmdPlayHaptic(pattern=%s)", c.Pattern)
}

// CmdApplyHaptic pushes the haptic enable setting to the player.
type CmdApplyHaptic struct {
	Enabled bool
}

func (CmdApplyHaptic) commandMarker() {}
func (c CmdApplyHaptic) String() string {
	return fmt.Sprintf("CmdApplyHaptic(enabled=%v)", c.Enabled)
}

// CmdSaveSettings persists settings to the state file.
type CmdSaveSettings struct {
	Settings Settings
}

func (CmdSaveSettings) commandMarker() {}
func (c CmdSaveSettings) String() string {
	return fmt.Sprintf("CmdSaveSettings(%+v)", c.Settings)
}

// CmdFactoryReset removes persisted settings.
type CmdFactoryReset struct{}

func (CmdFactoryReset) commandMarker() {}
func (CmdFactoryReset) String() string { return "CmdFactoryReset()" }

// CmdReboot runs the configured reboot command.
type CmdReboot struct{}

func (CmdReboot) commandMarker() {}
func (CmdReboot) String() string { return "CmdReboot()" }

// CmdPublishStateSnapshot delivers a reducer-built snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }

// DeviceStatus is the JSON document on home/knob/status.
type DeviceStatus struct {
	WiFi       bool   `json:"wifi"`
	MQTT       bool   `json:"mqtt"`
	IP         string `json:"ip"`
	Brightness int    `json:"brightness"`
	Haptic     bool   `json:"haptic"`
	Screen     string `json:"screen"`
	Uptime     int64  `json:"uptime"`   // seconds
	FreeMem    uint64 `json:"free_mem"` // bytes
}
