package main

import (
	"testing"
	"time"
)

// TestRecordRotaryStep_DirectionChange checks that opposite steps in the
// window do not count toward a spin.
func TestRecordRotaryStep_DirectionChange(t *testing.T) {
	window := 200 * time.Millisecond
	var hist []RotaryReducerStep
	var n int

	for i := 0; i < 3; i++ {
		hist, n = recordRotaryStep(hist, 1, testT0.Add(time.Duration(i)*10*time.Millisecond), window)
	}
	if n != 3 {
		t.Errorf("expected 3 cw steps, got %d", n)
	}

	hist, n = recordRotaryStep(hist, -1, testT0.Add(40*time.Millisecond), window)
	if n != 1 {
		t.Errorf("expected count=1 for new direction, got %d", n)
	}

	_, n = recordRotaryStep(hist, 1, testT0.Add(50*time.Millisecond), window)
	if n != 4 {
		t.Errorf("expected count=4 (3 old + 1 new cw steps still in window), got %d", n)
	}
}

func TestIsFastSpin(t *testing.T) {
	cfg := ReducerConfig{VelocityWindow: 200 * time.Millisecond, VelocityThreshold: 3}
	if isFastSpin(2, cfg) {
		t.Errorf("2 steps must not be a spin")
	}
	if !isFastSpin(3, cfg) {
		t.Errorf("3 steps must be a spin")
	}
	if isFastSpin(10, ReducerConfig{}) {
		t.Errorf("zero threshold disables detection")
	}
}
