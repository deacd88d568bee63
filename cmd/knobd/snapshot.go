package main

import "time"

// StateSnapshot is a copy of the daemon state safe to hand to other
// goroutines. It is also the data of the WebSocket "state_init" message.
type StateSnapshot struct {
	Screen        string          `json:"screen"`
	Menu          MenuSnapshot    `json:"menu"`
	Settings      Settings        `json:"settings"`
	Energy        EnergySnapshot  `json:"energy"`
	Weather       WeatherSnapshot `json:"weather"`
	Bins          BinsSnapshot    `json:"bins"`
	MOTD          string          `json:"motd"`
	MQTTConnected bool            `json:"mqtt_connected"`
	StartedAt     time.Time       `json:"started_at"`
}

type MenuSnapshot struct {
	Active         bool   `json:"active"`
	Selected       string `json:"selected"`
	ConfirmPending bool   `json:"confirm_pending"`
}

type EnergySnapshot struct {
	View      string       `json:"view"`
	Balance   float64      `json:"balance"`
	Solar     float64      `json:"solar"`
	Import    float64      `json:"import"`
	Used      float64      `json:"used"`
	Tariff    string       `json:"tariff,omitempty"`
	Known     bool         `json:"known"`
	Stale     bool         `json:"stale"`
	Peaks     EnergyPeaks  `json:"peaks"`
	Totals    EnergyTotals `json:"totals"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`
}

type WeatherSnapshot struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	FrostRisk   bool    `json:"frost_risk"`
}

type BinSnapshot struct {
	Status        string `json:"status"`
	DaysUntilNext int    `json:"days_until_next"`
}

type BinsSnapshot struct {
	Black   BinSnapshot `json:"black"`
	Orange  BinSnapshot `json:"orange"`
	Green   BinSnapshot `json:"green"`
	Display string      `json:"display"`
	Valid   bool        `json:"valid"`
}

func (s *DaemonState) snapshot() StateSnapshot {
	return StateSnapshot{
		Screen:        s.Screen.String(),
		Menu:          s.menuSnapshot(),
		Settings:      s.Settings,
		Energy:        s.energySnapshot(),
		Weather:       s.weatherSnapshot(),
		Bins:          s.binsSnapshot(),
		MOTD:          s.MOTD.Text,
		MQTTConnected: s.MQTTConnected,
		StartedAt:     s.StartedAt,
	}
}

func (s *DaemonState) menuSnapshot() MenuSnapshot {
	return MenuSnapshot{
		Active:         s.Menu.Active,
		Selected:       s.Menu.Selected.String(),
		ConfirmPending: s.Menu.resetPending(s.Now),
	}
}

func (s *DaemonState) energySnapshot() EnergySnapshot {
	e := s.Energy
	snap := EnergySnapshot{
		View:    s.EnergyView.String(),
		Balance: e.Balance,
		Solar:   e.Solar,
		Import:  e.Import,
		Used:    e.Used,
		Tariff:  e.Tariff,
		Known:   e.Known,
		Stale:   e.Stale(s.Now),
		Peaks:   e.Peaks,
		Totals:  e.Totals,
	}
	if !e.UpdatedAt.IsZero() {
		at := e.UpdatedAt
		snap.UpdatedAt = &at
	}
	return snap
}

func (s *DaemonState) weatherSnapshot() WeatherSnapshot {
	return WeatherSnapshot{
		Temperature: s.Weather.Temperature,
		Humidity:    s.Weather.Humidity,
		FrostRisk:   s.Weather.FrostRisk,
	}
}

func binSnapshot(b BinInfo) BinSnapshot {
	return BinSnapshot{Status: b.Status.String(), DaysUntilNext: b.DaysUntilNext}
}

func (s *DaemonState) binsSnapshot() BinsSnapshot {
	return BinsSnapshot{
		Black:   binSnapshot(s.Bins.Black),
		Orange:  binSnapshot(s.Bins.Orange),
		Green:   binSnapshot(s.Bins.Green),
		Display: s.Bins.Display(),
		Valid:   s.Bins.Valid(),
	}
}

// deviceStatus builds the reducer-owned part of the status document.
func (s *DaemonState) deviceStatus() DeviceStatus {
	return DeviceStatus{
		MQTT:       s.MQTTConnected,
		Brightness: s.Settings.Brightness,
		Haptic:     s.Settings.HapticEnabled,
		Screen:     s.Screen.String(),
	}
}
