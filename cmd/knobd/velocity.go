package main

import "time"

// recordRotaryStep appends a step, drops steps older than window and returns
// the new history with the count of same-direction steps inside the window
// (including this one).
//
// The history slice is copied, never mutated, so earlier states stay intact.
func recordRotaryStep(hist []RotaryReducerStep, direction int, at time.Time, window time.Duration) ([]RotaryReducerStep, int) {
	cutoff := at.Add(-window)

	next := make([]RotaryReducerStep, 0, len(hist)+1)
	for _, s := range hist {
		if s.At.After(cutoff) {
			next = append(next, s)
		}
	}
	next = append(next, RotaryReducerStep{At: at, Direction: direction})

	sameDir := 0
	for _, s := range next {
		if s.Direction == direction {
			sameDir++
		}
	}
	return next, sameDir
}

// isFastSpin reports whether count steps inside the window qualify as a spin.
// A zero threshold disables detection.
func isFastSpin(count int, cfg ReducerConfig) bool {
	return cfg.VelocityThreshold > 0 && count >= cfg.VelocityThreshold
}
