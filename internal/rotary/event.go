package rotary

// Event is a decoded input from the knob. Events are created by the edge path
// and consumed exactly once by the dispatcher.
type Event uint8

const (
	None Event = iota
	Clockwise
	CounterClockwise
	ButtonPress
)

func (e Event) String() string {
	switch e {
	case None:
		return "none"
	case Clockwise:
		return "cw"
	case CounterClockwise:
		return "ccw"
	case ButtonPress:
		return "button"
	default:
		return "unknown"
	}
}

// Direction returns +1 for Clockwise, -1 for CounterClockwise and 0 otherwise.
func (e Event) Direction() int {
	switch e {
	case Clockwise:
		return 1
	case CounterClockwise:
		return -1
	default:
		return 0
	}
}
