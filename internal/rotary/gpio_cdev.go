//go:build linux

package rotary

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// cdevEpoch anchors kernel event timestamps (CLOCK_MONOTONIC offsets) on a
// time.Time so the debouncers can compare them.
var cdevEpoch = time.Unix(0, 0)

// CdevSource reads the encoder through the Linux GPIO character device.
//
// Channels A and B are requested together with both edges enabled; the
// button is requested on its own with falling edges only. All lines are
// pulled up. Edge events that arrive before Attach are ignored.
type CdevSource struct {
	chipName string
	pinA     int
	pinB     int
	pinSW    int
	logger   *slog.Logger

	mu     sync.Mutex
	chip   *gpiod.Chip
	rot    *gpiod.Lines
	button *gpiod.Line
	closed bool
	vals   [2]int // A, B; reused by every read under mu

	sink atomic.Pointer[EdgeSink]
}

// OpenCdev requests the encoder lines on chipName (for example "gpiochip0").
func OpenCdev(chipName string, cfg Config, logger *slog.Logger) (*CdevSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	chip, err := gpiod.NewChip(chipName, gpiod.WithConsumer("knobd"))
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", chipName, err)
	}

	s := &CdevSource{
		chipName: chipName,
		pinA:     cfg.PinA,
		pinB:     cfg.PinB,
		pinSW:    cfg.PinButton,
		logger:   logger,
		chip:     chip,
	}

	rot, err := chip.RequestLines([]int{cfg.PinA, cfg.PinB},
		gpiod.AsInput,
		gpiod.WithPullUp,
		gpiod.WithBothEdges,
		gpiod.WithEventHandler(s.handleRotation),
	)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request encoder lines %d,%d: %w", cfg.PinA, cfg.PinB, err)
	}
	s.rot = rot

	if cfg.PinButton != NoPin {
		btn, err := chip.RequestLine(cfg.PinButton,
			gpiod.AsInput,
			gpiod.WithPullUp,
			gpiod.WithFallingEdge,
			gpiod.WithEventHandler(s.handleButton),
		)
		if err != nil {
			rot.Close()
			chip.Close()
			return nil, fmt.Errorf("request button line %d: %w", cfg.PinButton, err)
		}
		s.button = btn
	}

	logger.Info("gpio lines requested", "chip", chipName, "pin_a", cfg.PinA, "pin_b", cfg.PinB, "pin_button", cfg.PinButton)
	return s, nil
}

// Attach starts forwarding edges to sink.
func (s *CdevSource) Attach(sink EdgeSink) error {
	if sink == nil {
		return errors.New("rotary: nil edge sink")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("rotary: source closed")
	}
	s.sink.Store(&sink)
	return nil
}

// Level reads the current level of one of the requested lines.
func (s *CdevSource) Level(pin int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errors.New("rotary: source closed")
	}

	switch pin {
	case s.pinA, s.pinB:
		if err := s.rot.Values(s.vals[:]); err != nil {
			return false, err
		}
		if pin == s.pinA {
			return s.vals[0] != 0, nil
		}
		return s.vals[1] != 0, nil
	case s.pinSW:
		if s.button == nil {
			return false, fmt.Errorf("rotary: pin %d not requested", pin)
		}
		v, err := s.button.Value()
		if err != nil {
			return false, err
		}
		return v != 0, nil
	default:
		return false, fmt.Errorf("rotary: pin %d not requested", pin)
	}
}

// State reads A and B with one request so both levels come from the same
// instant.
func (s *CdevSource) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("rotary: source closed")
	}
	if err := s.rot.Values(s.vals[:]); err != nil {
		return 0, err
	}
	return PackState(s.vals[0] != 0, s.vals[1] != 0), nil
}

// Close detaches the sink and releases the lines. Edge handlers stop firing
// before Close returns.
func (s *CdevSource) Close() error {
	s.sink.Store(nil)

	// Lines are closed outside mu: a handler blocked in Level must be able
	// to observe closed and return, or the line close would wait on it.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if s.button != nil {
		if err := s.button.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button line: %w", err))
		}
	}
	if s.rot != nil {
		if err := s.rot.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close encoder lines: %w", err))
		}
	}
	if err := s.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	s.logger.Debug("gpio lines released", "chip", s.chipName)
	return errors.Join(errs...)
}

func (s *CdevSource) handleRotation(evt gpiod.LineEvent) {
	if p := s.sink.Load(); p != nil {
		(*p).RotationEdge(cdevEpoch.Add(evt.Timestamp))
	}
}

func (s *CdevSource) handleButton(evt gpiod.LineEvent) {
	if evt.Type != gpiod.LineEventFallingEdge {
		return
	}
	if p := s.sink.Load(); p != nil {
		(*p).ButtonEdge(cdevEpoch.Add(evt.Timestamp))
	}
}
