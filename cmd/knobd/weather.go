package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// WeatherState holds indoor climate readings from the home/weather feed.
type WeatherState struct {
	Temperature float64
	Humidity    float64
	FrostRisk   bool
	UpdatedAt   time.Time
}

func defaultWeather() WeatherState {
	return WeatherState{
		Temperature: defaultTemperature,
		Humidity:    defaultHumidity,
	}
}

func parseWeatherFloat(payload string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", payload, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not finite", payload)
	}
	return v, nil
}

// parseFrostRisk accepts true, 1 and yes as an active warning; anything else clears it.
func parseFrostRisk(payload string) bool {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// applyTemperature ignores moves of temperatureMinDelta or less.
func (w WeatherState) applyTemperature(c float64, at time.Time) (WeatherState, bool) {
	if math.Abs(c-w.Temperature) <= temperatureMinDelta {
		return w, false
	}
	w.Temperature = c
	w.UpdatedAt = at
	return w, true
}

// applyHumidity clamps to 0..100 and ignores moves of humidityMinDelta or less.
func (w WeatherState) applyHumidity(pct float64, at time.Time) (WeatherState, bool) {
	pct = math.Max(0, math.Min(100, pct))
	if math.Abs(pct-w.Humidity) <= humidityMinDelta {
		return w, false
	}
	w.Humidity = pct
	w.UpdatedAt = at
	return w, true
}

func (w WeatherState) applyFrostRisk(active bool, at time.Time) (WeatherState, bool) {
	if active == w.FrostRisk {
		return w, false
	}
	w.FrostRisk = active
	w.UpdatedAt = at
	return w, true
}
