package main

import "time"

// StateBroadcast is a reducer-emitted change notification for WebSocket
// clients. The broadcaster turns each one into a typed JSON frame.
type StateBroadcast interface {
	broadcastMarker()
}

type BroadcastScreenChanged struct {
	Screen   string
	Previous string
	Menu     MenuSnapshot
	At       time.Time
}

func (BroadcastScreenChanged) broadcastMarker() {}

type BroadcastSettingsChanged struct {
	Settings Settings
	At       time.Time
}

func (BroadcastSettingsChanged) broadcastMarker() {}

type BroadcastEnergyChanged struct {
	Energy EnergySnapshot
	At     time.Time
}

func (BroadcastEnergyChanged) broadcastMarker() {}

type BroadcastWeatherChanged struct {
	Weather WeatherSnapshot
	At      time.Time
}

func (BroadcastWeatherChanged) broadcastMarker() {}

type BroadcastBinsChanged struct {
	Bins BinsSnapshot
	At   time.Time
}

func (BroadcastBinsChanged) broadcastMarker() {}

type BroadcastMOTDChanged struct {
	Text string
	At   time.Time
}

func (BroadcastMOTDChanged) broadcastMarker() {}

// BroadcastDeviceChanged reports device-level actions such as a pending
// factory reset or an unsupported request.
type BroadcastDeviceChanged struct {
	Action string
	Detail string
	At     time.Time
}

func (BroadcastDeviceChanged) broadcastMarker() {}

type BroadcastConnectionChanged struct {
	MQTT bool
	At   time.Time
}

func (BroadcastConnectionChanged) broadcastMarker() {}

// BroadcastRotary mirrors each accepted knob step for UIs that animate it.
type BroadcastRotary struct {
	Direction string
	Fast      bool
	At        time.Time
}

func (BroadcastRotary) broadcastMarker() {}
