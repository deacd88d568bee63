package rotary

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// VirtualPins is an in-memory Source. Setting a level fires the same edge
// callbacks a real chip would: any change on A or B is a rotation edge, a
// high-to-low change on the button is a button edge.
type VirtualPins struct {
	mu     sync.Mutex
	levels map[int]bool
	pinA   int
	pinB   int
	pinSW  int
	sink   EdgeSink
	closed bool
}

// NewVirtualPins creates idle lines (all high, as with pull-ups) for cfg.
func NewVirtualPins(cfg Config) *VirtualPins {
	v := &VirtualPins{
		levels: map[int]bool{cfg.PinA: true, cfg.PinB: true},
		pinA:   cfg.PinA,
		pinB:   cfg.PinB,
		pinSW:  cfg.PinButton,
	}
	if cfg.PinButton != NoPin {
		v.levels[cfg.PinButton] = true
	}
	return v
}

// Level implements Levels.
func (v *VirtualPins) Level(pin int) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	level, ok := v.levels[pin]
	if !ok {
		return false, fmt.Errorf("rotary: virtual pin %d not configured", pin)
	}
	return level, nil
}

// State implements StateReader.
func (v *VirtualPins) State() (State, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return PackState(v.levels[v.pinA], v.levels[v.pinB]), nil
}

// Attach implements Source.
func (v *VirtualPins) Attach(sink EdgeSink) error {
	if sink == nil {
		return errors.New("rotary: nil edge sink")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return errors.New("rotary: source closed")
	}
	v.sink = sink
	return nil
}

// Close implements Source.
func (v *VirtualPins) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.sink = nil
	return nil
}

// Set drives pin to level at time at and fires the matching edge, if any.
// It returns the event the sink queued.
func (v *VirtualPins) Set(pin int, level bool, at time.Time) (Event, error) {
	v.mu.Lock()
	prev, ok := v.levels[pin]
	if !ok {
		v.mu.Unlock()
		return None, fmt.Errorf("rotary: virtual pin %d not configured", pin)
	}
	v.levels[pin] = level
	sink := v.sink
	v.mu.Unlock()

	if sink == nil || prev == level {
		return None, nil
	}
	switch pin {
	case v.pinA, v.pinB:
		return sink.RotationEdge(at), nil
	case v.pinSW:
		if prev && !level {
			return sink.ButtonEdge(at), nil
		}
	}
	return None, nil
}

// Step drives one full detent (four transitions) in the given direction,
// spacing edges by gap. The lines are expected to start idle (both high).
func (v *VirtualPins) Step(clockwise bool, start time.Time, gap time.Duration) ([]Event, error) {
	// (A, B) levels for one detent starting from the idle state (high, high).
	seqCW := [][2]bool{{false, true}, {false, false}, {true, false}, {true, true}}
	seqCCW := [][2]bool{{true, false}, {false, false}, {false, true}, {true, true}}
	seq := seqCW
	if !clockwise {
		seq = seqCCW
	}

	var out []Event
	at := start
	for _, ab := range seq {
		a, b := ab[0], ab[1]
		cur, err := v.Level(v.pinA)
		if err != nil {
			return out, err
		}
		if cur != a {
			ev, err := v.Set(v.pinA, a, at)
			if err != nil {
				return out, err
			}
			out = append(out, ev)
			at = at.Add(gap)
		}
		cur, err = v.Level(v.pinB)
		if err != nil {
			return out, err
		}
		if cur != b {
			ev, err := v.Set(v.pinB, b, at)
			if err != nil {
				return out, err
			}
			out = append(out, ev)
			at = at.Add(gap)
		}
	}
	return out, nil
}
