package main

import "testing"

func TestParseFrostRisk(t *testing.T) {
	for in, want := range map[string]bool{
		"true":  true,
		"1":     true,
		" YES ": true,
		"false": false,
		"0":     false,
		"maybe": false,
		"":      false,
	} {
		if got := parseFrostRisk(in); got != want {
			t.Fatalf("parseFrostRisk(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseWeatherFloat(t *testing.T) {
	if v, err := parseWeatherFloat(" 21.25\n"); err != nil || v != 21.25 {
		t.Fatalf("expected 21.25, got %v (%v)", v, err)
	}
	if _, err := parseWeatherFloat("warm"); err == nil {
		t.Fatalf("expected error for non-numeric payload")
	}
	if _, err := parseWeatherFloat("NaN"); err == nil {
		t.Fatalf("expected error for NaN")
	}
}

func TestWeather_HumidityDeltaAndClamp(t *testing.T) {
	w := defaultWeather()

	w, changed := w.applyHumidity(45.4, testT0)
	if changed {
		t.Fatalf("move of 0.4 must be ignored")
	}
	w, changed = w.applyHumidity(-10, testT0)
	if !changed || w.Humidity != 0 {
		t.Fatalf("expected clamp to 0, got %v (changed=%v)", w.Humidity, changed)
	}
}
