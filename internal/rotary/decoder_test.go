package rotary

import "testing"

func TestDecode_ClockwiseTransitions(t *testing.T) {
	// 00 -> 01 -> 11 -> 10 -> 00 in (B,A) bit order is one clockwise cycle.
	cycle := []State{0x0, 0x1, 0x3, 0x2, 0x0}
	for i := 1; i < len(cycle); i++ {
		if got := Decode(cycle[i-1], cycle[i], false); got != Clockwise {
			t.Fatalf("transition %02b -> %02b: expected %v, got %v", cycle[i-1], cycle[i], Clockwise, got)
		}
	}
}

func TestDecode_CounterClockwiseTransitions(t *testing.T) {
	cycle := []State{0x0, 0x2, 0x3, 0x1, 0x0}
	for i := 1; i < len(cycle); i++ {
		if got := Decode(cycle[i-1], cycle[i], false); got != CounterClockwise {
			t.Fatalf("transition %02b -> %02b: expected %v, got %v", cycle[i-1], cycle[i], CounterClockwise, got)
		}
	}
}

func TestDecode_InvertSwapsDirection(t *testing.T) {
	for prev := State(0); prev < 4; prev++ {
		for curr := State(0); curr < 4; curr++ {
			plain := Decode(prev, curr, false)
			inverted := Decode(prev, curr, true)
			switch plain {
			case Clockwise:
				if inverted != CounterClockwise {
					t.Errorf("%02b -> %02b: inverted expected ccw, got %v", prev, curr, inverted)
				}
			case CounterClockwise:
				if inverted != Clockwise {
					t.Errorf("%02b -> %02b: inverted expected cw, got %v", prev, curr, inverted)
				}
			default:
				if inverted != None {
					t.Errorf("%02b -> %02b: inverted expected none, got %v", prev, curr, inverted)
				}
			}
		}
	}
}

func TestDecode_NoChangeAndDoubleFlipAreNone(t *testing.T) {
	for s := State(0); s < 4; s++ {
		if got := Decode(s, s, false); got != None {
			t.Errorf("identity %02b: expected none, got %v", s, got)
		}
		// Flipping both bits at once is noise.
		if got := Decode(s, s^0x3, false); got != None {
			t.Errorf("double flip %02b -> %02b: expected none, got %v", s, s^0x3, got)
		}
	}
}

func TestDecode_TableCounts(t *testing.T) {
	var cw, ccw, none int
	for code := 0; code < 16; code++ {
		switch Decode(State(code>>2), State(code&0x3), false) {
		case Clockwise:
			cw++
		case CounterClockwise:
			ccw++
		default:
			none++
		}
	}
	if cw != 4 || ccw != 4 || none != 8 {
		t.Fatalf("expected 4 cw / 4 ccw / 8 none, got %d / %d / %d", cw, ccw, none)
	}
}

func TestPackState(t *testing.T) {
	if got := PackState(true, false); got != 0x1 {
		t.Errorf("A only: expected 01, got %02b", got)
	}
	if got := PackState(false, true); got != 0x2 {
		t.Errorf("B only: expected 10, got %02b", got)
	}
	if got := PackState(true, true); got != 0x3 {
		t.Errorf("both: expected 11, got %02b", got)
	}
}
