package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// EnergyState is the live view of the emonTx feed plus daily aggregates.
type EnergyState struct {
	Balance float64 // grid balance in watts; negative means export
	Solar   float64
	Import  float64
	Used    float64
	Tariff  string

	Known     bool
	UpdatedAt time.Time

	Peaks  EnergyPeaks
	Totals EnergyTotals

	// Day is the local date (YYYY-MM-DD) the peaks and totals belong to.
	Day string

	// StaleReported is set once a stale broadcast has gone out for the
	// current gap in data.
	StaleReported bool

	lastSolar  energySample
	lastImport energySample
	lastUsed   energySample

	solarPeakAlerted  bool
	importPeakAlerted bool
}

type EnergyPeaks struct {
	Solar  float64 `json:"solar"`
	Import float64 `json:"import"`
	Used   float64 `json:"used"`
}

type EnergyTotals struct {
	SolarKWh  float64 `json:"solar_kwh"`
	ImportKWh float64 `json:"import_kwh"`
	UsedKWh   float64 `json:"used_kwh"`
}

type energySample struct {
	Value float64
	At    time.Time
}

// energyOutcome describes what a reading did to the state.
type energyOutcome struct {
	Changed     bool
	RolledOver  bool
	PeakReached bool
}

var validTariffs = map[string]bool{
	"high":     true,
	"low":      true,
	"peak":     true,
	"off-peak": true,
}

// parseEnergyValue parses a power reading in watts and rejects values outside
// the plausible range of a domestic supply.
func parseEnergyValue(payload string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil {
		return 0, fmt.Errorf("parse watts %q: %w", payload, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("watts %q is not finite", payload)
	}
	if math.Abs(v) > energyMaxAbsWatts {
		return 0, fmt.Errorf("watts %.0f outside ±%.0f", v, energyMaxAbsWatts)
	}
	return v, nil
}

func parseTariff(payload string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(payload))
	if !validTariffs[t] {
		return "", fmt.Errorf("unknown tariff %q", payload)
	}
	return t, nil
}

func localDay(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// rollover starts a new day when the local date of at differs from e.Day:
// peaks restart from the current readings and totals return to zero.
func (e EnergyState) rollover(at time.Time) (EnergyState, bool) {
	day := localDay(at)
	if e.Day == "" {
		e.Day = day
		return e, false
	}
	if day == e.Day {
		return e, false
	}
	e.Day = day
	e.Peaks = EnergyPeaks{
		Solar:  math.Max(e.Solar, 0),
		Import: math.Max(e.Import, 0),
		Used:   math.Max(e.Used, 0),
	}
	e.Totals = EnergyTotals{}
	e.solarPeakAlerted = false
	e.importPeakAlerted = false
	return e, true
}

// integrate adds the energy of the previous sample's power over the gap to
// total. Only positive power counts, and gaps of an hour or more are skipped.
func integrate(total float64, prev energySample, at time.Time) float64 {
	if prev.At.IsZero() || prev.Value <= 0 || !at.After(prev.At) {
		return total
	}
	gap := at.Sub(prev.At)
	if gap >= energyMaxTotalGap {
		return total
	}
	return total + prev.Value*gap.Hours()/1000
}

// applyReading records one power reading. field is the last topic segment:
// balance, solar, import or used.
func (e EnergyState) applyReading(field string, v float64, at time.Time) (EnergyState, energyOutcome, error) {
	var out energyOutcome
	e, out.RolledOver = e.rollover(at)

	switch field {
	case "balance":
		out.Changed = !e.Known || e.Balance != v
		e.Balance = v

	case "solar":
		out.Changed = !e.Known || e.Solar != v
		e.Totals.SolarKWh = integrate(e.Totals.SolarKWh, e.lastSolar, at)
		e.lastSolar = energySample{Value: v, At: at}
		e.Solar = v
		if v > e.Peaks.Solar {
			if !e.solarPeakAlerted && e.Peaks.Solar > 0 && v >= e.Peaks.Solar+energyPeakHapticMin {
				e.solarPeakAlerted = true
				out.PeakReached = true
			}
			e.Peaks.Solar = v
		}

	case "import":
		out.Changed = !e.Known || e.Import != v
		e.Totals.ImportKWh = integrate(e.Totals.ImportKWh, e.lastImport, at)
		e.lastImport = energySample{Value: v, At: at}
		e.Import = v
		if v > e.Peaks.Import {
			if !e.importPeakAlerted && e.Peaks.Import > 0 && v >= e.Peaks.Import+energyPeakHapticMin {
				e.importPeakAlerted = true
				out.PeakReached = true
			}
			e.Peaks.Import = v
		}

	case "used":
		out.Changed = !e.Known || e.Used != v
		e.Totals.UsedKWh = integrate(e.Totals.UsedKWh, e.lastUsed, at)
		e.lastUsed = energySample{Value: v, At: at}
		e.Used = v
		if v > e.Peaks.Used {
			e.Peaks.Used = v
		}

	default:
		return e, energyOutcome{}, fmt.Errorf("unknown energy field %q", field)
	}

	if e.StaleReported {
		out.Changed = true
	}
	e.Known = true
	e.UpdatedAt = at
	e.StaleReported = false
	out.Changed = out.Changed || out.RolledOver
	return e, out, nil
}

func (e EnergyState) applyTariff(tariff string) (EnergyState, bool) {
	changed := e.Tariff != tariff
	e.Tariff = tariff
	return e, changed
}

// Stale reports whether known data has not been refreshed for energyStaleAfter.
func (e EnergyState) Stale(now time.Time) bool {
	return e.Known && now.Sub(e.UpdatedAt) > energyStaleAfter
}
