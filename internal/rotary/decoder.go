package rotary

// State is the packed level of the two quadrature channels: bit0 is A, bit1 is B.
type State uint8

// PackState builds a State from the channel levels.
func PackState(a, b bool) State {
	var s State
	if a {
		s |= 0x1
	}
	if b {
		s |= 0x2
	}
	return s
}

// transitions maps (prev<<2 | curr) to a step: +1 clockwise, -1 counter-clockwise,
// 0 for no change or a double-bit flip.
var transitions = [16]int8{
	0x0: 0, 0x1: 1, 0x2: -1, 0x3: 0,
	0x4: -1, 0x5: 0, 0x6: 0, 0x7: 1,
	0x8: 1, 0x9: 0, 0xA: 0, 0xB: -1,
	0xC: 0, 0xD: -1, 0xE: 1, 0xF: 0,
}

// Decode maps a transition between two channel states to an Event.
//
// Both channels changing at once cannot be attributed to a direction and is
// reported as None, so a very fast spin can under-count steps.
func Decode(prev, curr State, invert bool) Event {
	code := (prev&0x3)<<2 | (curr & 0x3)
	step := transitions[code]
	if invert {
		step = -step
	}
	switch step {
	case 1:
		return Clockwise
	case -1:
		return CounterClockwise
	default:
		return None
	}
}
