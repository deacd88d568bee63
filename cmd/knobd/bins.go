package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// BinSchedule is the payload of home/bins/schedule, e.g.
//
//	{"today":"none","tomorrow":"black","days_to_next":1}
//
// "green" collections take the orange bin as well.
type BinSchedule struct {
	Today      string `json:"today"`
	Tomorrow   string `json:"tomorrow"`
	DaysToNext int    `json:"days_to_next"`
}

type BinStatus int

const (
	BinUnknown BinStatus = iota
	BinDueToday
	BinPrepareTonight
	BinNextCollection
)

func (s BinStatus) String() string {
	switch s {
	case BinDueToday:
		return "due_today"
	case BinPrepareTonight:
		return "prepare_tonight"
	case BinNextCollection:
		return "next_collection"
	default:
		return "unknown"
	}
}

// BinInfo is the status of one bin.
type BinInfo struct {
	Status        BinStatus
	DaysUntilNext int
}

// BinsState is the derived per-bin status for the House screen.
type BinsState struct {
	Black  BinInfo
	Orange BinInfo
	Green  BinInfo

	UpdatedAt time.Time
}

func parseBinName(s string) (string, error) {
	switch n := strings.ToLower(strings.TrimSpace(s)); n {
	case "black", "green", "none":
		return n, nil
	case "orange":
		return "green", nil
	case "":
		return "none", nil
	default:
		return "", fmt.Errorf("unknown bin %q", s)
	}
}

// parseBinSchedule decodes and normalizes a schedule payload.
func parseBinSchedule(payload string) (BinSchedule, error) {
	var sch BinSchedule
	if err := json.Unmarshal([]byte(payload), &sch); err != nil {
		return BinSchedule{}, fmt.Errorf("decode bin schedule: %w", err)
	}
	var err error
	if sch.Today, err = parseBinName(sch.Today); err != nil {
		return BinSchedule{}, fmt.Errorf("today: %w", err)
	}
	if sch.Tomorrow, err = parseBinName(sch.Tomorrow); err != nil {
		return BinSchedule{}, fmt.Errorf("tomorrow: %w", err)
	}
	if sch.DaysToNext < 0 {
		return BinSchedule{}, fmt.Errorf("days_to_next must be >= 0, got %d", sch.DaysToNext)
	}
	return sch, nil
}

// binsFromSchedule derives every bin's status from a schedule. All bins start
// unknown, today's collection is due, tomorrow's needs preparing tonight, and
// with nothing due today or tomorrow the next collection countdown goes on the
// black bin.
func binsFromSchedule(sch BinSchedule, at time.Time) BinsState {
	var b BinsState
	b.UpdatedAt = at

	switch sch.Today {
	case "black":
		b.Black.Status = BinDueToday
	case "green":
		b.Green.Status = BinDueToday
		b.Orange.Status = BinDueToday
	}

	switch sch.Tomorrow {
	case "black":
		b.Black = BinInfo{Status: BinPrepareTonight, DaysUntilNext: 1}
	case "green":
		b.Green = BinInfo{Status: BinPrepareTonight, DaysUntilNext: 1}
		b.Orange = BinInfo{Status: BinPrepareTonight, DaysUntilNext: 1}
	}

	if sch.Today == "none" && sch.Tomorrow == "none" && sch.DaysToNext > 1 {
		b.Black = BinInfo{Status: BinNextCollection, DaysUntilNext: sch.DaysToNext}
	}
	return b
}

// Valid reports whether any bin has a known status.
func (b BinsState) Valid() bool {
	return b.Black.Status != BinUnknown || b.Orange.Status != BinUnknown || b.Green.Status != BinUnknown
}

// Display is the single-line summary shown on the House screen. Due today
// wins over prepare tonight, which wins over the next collection.
func (b BinsState) Display() string {
	switch {
	case b.Black.Status == BinDueToday:
		return "Black bin due today"
	case b.Green.Status == BinDueToday || b.Orange.Status == BinDueToday:
		return "Green+Orange due today"
	case b.Black.Status == BinPrepareTonight:
		return "Prepare Black bin tonight"
	case b.Green.Status == BinPrepareTonight || b.Orange.Status == BinPrepareTonight:
		return "Prepare Green+Orange tonight"
	case b.Black.DaysUntilNext > 0:
		return fmt.Sprintf("Black bin in %d days", b.Black.DaysUntilNext)
	case b.Green.DaysUntilNext > 0:
		return fmt.Sprintf("Green+Orange in %d days", b.Green.DaysUntilNext)
	default:
		return "No schedule data"
	}
}
