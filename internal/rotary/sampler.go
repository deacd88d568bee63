package rotary

import "time"

// NoPin marks an unused input (for example an encoder without a push button).
const NoPin = -1

// Levels reads the current logic level of a GPIO input.
type Levels interface {
	Level(pin int) (bool, error)
}

// EdgeSink receives edge notifications from a Source. Implementations must not block.
type EdgeSink interface {
	RotationEdge(at time.Time) Event
	ButtonEdge(at time.Time) Event
}

// Source is an edge-triggered input that feeds an EdgeSink.
// Close stops edge delivery; no sink call starts after Close returns.
type Source interface {
	Levels
	Attach(sink EdgeSink) error
	Close() error
}

// StateReader reads channels A and B in a single operation. Sources that can
// latch both lines at once implement it so a decoded transition never mixes
// levels from two different instants.
type StateReader interface {
	State() (State, error)
}

// sampler reads the encoder lines through Levels, or through StateReader
// when the source provides one.
type sampler struct {
	levels            Levels
	pair              StateReader
	pinA, pinB, pinSW int
}

func newSampler(levels Levels, cfg Config) sampler {
	s := sampler{
		levels: levels,
		pinA:   cfg.PinA,
		pinB:   cfg.PinB,
		pinSW:  cfg.PinButton,
	}
	if sr, ok := levels.(StateReader); ok {
		s.pair = sr
	}
	return s
}

// state returns the packed A/B state.
func (s sampler) state() (State, error) {
	if s.pair != nil {
		return s.pair.State()
	}
	a, err := s.levels.Level(s.pinA)
	if err != nil {
		return 0, err
	}
	b, err := s.levels.Level(s.pinB)
	if err != nil {
		return 0, err
	}
	return PackState(a, b), nil
}

// pressed reports whether the button is held down. The line is active low.
func (s sampler) pressed() (bool, error) {
	if s.pinSW == NoPin {
		return false, nil
	}
	level, err := s.levels.Level(s.pinSW)
	if err != nil {
		return false, err
	}
	return !level, nil
}
