package rotary

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Debounce defaults.
const (
	DefaultRotationDebounce = 5 * time.Millisecond
	DefaultButtonDebounce   = 50 * time.Millisecond
)

// ErrInvalidConfig is returned by New when the configuration cannot describe a working encoder.
var ErrInvalidConfig = errors.New("rotary: invalid configuration")

// Config describes the wiring and filtering of one encoder.
type Config struct {
	PinA      int
	PinB      int
	PinButton int // NoPin when the encoder has no push button

	InvertDirection bool

	// Zero values select the defaults.
	RotationDebounce time.Duration
	ButtonDebounce   time.Duration
	QueueCapacity    int
}

// Validate checks pin assignments and timing values.
func (c Config) Validate() error {
	if c.PinA < 0 || c.PinB < 0 {
		return fmt.Errorf("%w: channel pins must be >= 0 (a=%d b=%d)", ErrInvalidConfig, c.PinA, c.PinB)
	}
	if c.PinA == c.PinB {
		return fmt.Errorf("%w: channel A and B share pin %d", ErrInvalidConfig, c.PinA)
	}
	if c.PinButton != NoPin {
		if c.PinButton < 0 {
			return fmt.Errorf("%w: button pin must be >= 0 or NoPin (got %d)", ErrInvalidConfig, c.PinButton)
		}
		if c.PinButton == c.PinA || c.PinButton == c.PinB {
			return fmt.Errorf("%w: button shares pin %d with a channel", ErrInvalidConfig, c.PinButton)
		}
	}
	if c.RotationDebounce < 0 || c.ButtonDebounce < 0 {
		return fmt.Errorf("%w: debounce windows must be >= 0", ErrInvalidConfig)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue capacity must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.RotationDebounce == 0 {
		c.RotationDebounce = DefaultRotationDebounce
	}
	if c.ButtonDebounce == 0 {
		c.ButtonDebounce = DefaultButtonDebounce
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	return c
}

// Stats are running counters of the edge path.
type Stats struct {
	Accepted   uint64 // edges that passed debounce
	Rejected   uint64 // edges suppressed by debounce
	Noise      uint64 // accepted rotation edges that decoded to None
	ReadErrors uint64
	Dropped    uint64 // events discarded on queue overflow
}

// Encoder owns the decode state of one rotary encoder and the queue its events go to.
//
// RotationEdge and ButtonEdge are the producer side. Each must be called from
// one edge path at a time; the two touch disjoint state and may run
// concurrently with each other. The Queue is the only state shared with the
// consumer.
type Encoder struct {
	cfg     Config
	sampler sampler
	queue   *Queue

	state       State
	rotDebounce Debouncer
	btnDebounce Debouncer

	accepted   atomic.Uint64
	rejected   atomic.Uint64
	noise      atomic.Uint64
	readErrors atomic.Uint64
}

// New validates cfg, samples the initial channel state and returns a ready Encoder.
func New(cfg Config, levels Levels) (*Encoder, error) {
	if levels == nil {
		return nil, fmt.Errorf("%w: no GPIO levels reader", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	e := &Encoder{
		cfg:         cfg,
		sampler:     newSampler(levels, cfg),
		queue:       NewQueue(cfg.QueueCapacity),
		rotDebounce: Debouncer{Window: cfg.RotationDebounce},
		btnDebounce: Debouncer{Window: cfg.ButtonDebounce},
	}

	st, err := e.sampler.state()
	if err != nil {
		return nil, fmt.Errorf("rotary: read initial state: %w", err)
	}
	e.state = st
	return e, nil
}

// Config returns the effective configuration (defaults applied).
func (e *Encoder) Config() Config { return e.cfg }

// Queue returns the queue decoded events are delivered to.
func (e *Encoder) Queue() *Queue { return e.queue }

// RotationEdge handles an edge on channel A or B at time at.
// It returns the event that was queued, or None.
func (e *Encoder) RotationEdge(at time.Time) Event {
	if !e.rotDebounce.Accept(at) {
		e.rejected.Add(1)
		return None
	}
	e.accepted.Add(1)

	curr, err := e.sampler.state()
	if err != nil {
		e.readErrors.Add(1)
		return None
	}

	ev := Decode(e.state, curr, e.cfg.InvertDirection)
	e.state = curr
	if ev == None {
		e.noise.Add(1)
		return None
	}
	e.queue.Push(ev)
	return ev
}

// ButtonEdge handles a falling edge on the button line at time at.
// It returns ButtonPress when one was queued, or None.
func (e *Encoder) ButtonEdge(at time.Time) Event {
	if e.cfg.PinButton == NoPin {
		return None
	}
	if !e.btnDebounce.Accept(at) {
		e.rejected.Add(1)
		return None
	}
	e.accepted.Add(1)

	pressed, err := e.sampler.pressed()
	if err != nil {
		e.readErrors.Add(1)
		return None
	}
	if !pressed {
		return None
	}
	e.queue.Push(ButtonPress)
	return ButtonPress
}

// Stats returns a snapshot of the edge path counters.
func (e *Encoder) Stats() Stats {
	return Stats{
		Accepted:   e.accepted.Load(),
		Rejected:   e.rejected.Load(),
		Noise:      e.noise.Load(),
		ReadErrors: e.readErrors.Load(),
		Dropped:    e.queue.Dropped(),
	}
}
