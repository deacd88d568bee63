package rotary

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// DefaultPollInterval bounds each blocking wait of the dispatcher so it can
// notice cancellation and report liveness.
const DefaultPollInterval = 100 * time.Millisecond

// Handler consumes one decoded event. It runs on the dispatcher goroutine and
// may do real work (publish, redraw, feed a daemon loop).
type Handler func(Event)

// Dispatcher drains a Queue and invokes a Handler once per event, in order.
type Dispatcher struct {
	queue   *Queue
	handler Handler
	poll    time.Duration
	logger  *slog.Logger

	running   atomic.Bool
	delivered atomic.Uint64
	panics    atomic.Uint64
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.poll = d
		}
	}
}

// NewDispatcher returns a dispatcher for q. Call Run to start consuming.
func NewDispatcher(q *Queue, h Handler, logger *slog.Logger, opts ...DispatcherOption) (*Dispatcher, error) {
	if q == nil {
		return nil, errors.New("rotary: dispatcher needs a queue")
	}
	if h == nil {
		return nil, errors.New("rotary: dispatcher needs a handler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		queue:   q,
		handler: h,
		poll:    DefaultPollInterval,
		logger:  logger,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// ErrDispatcherRunning is returned by Run when the dispatcher is already consuming.
var ErrDispatcherRunning = errors.New("rotary: dispatcher already running")

// Run consumes events until ctx is canceled. Events still queued at that point
// are left in the queue.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrDispatcherRunning
	}
	defer d.running.Store(false)

	d.logger.Debug("rotary dispatcher starting", "poll", d.poll)
	var lastDropped uint64

	for {
		ev, ok := d.queue.Pop(ctx, d.poll)
		if ok {
			d.deliver(ev)
		}
		if ctx.Err() != nil {
			d.logger.Debug("rotary dispatcher stopping", "delivered", d.delivered.Load())
			return nil
		}
		if dropped := d.queue.Dropped(); dropped != lastDropped {
			d.logger.Debug("rotary queue overflow", "dropped_total", dropped, "dropped_new", dropped-lastDropped)
			lastDropped = dropped
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.logger.Error("rotary handler panicked", "event", ev.String(), "panic", r, "stack", string(debug.Stack()))
		}
	}()
	d.handler(ev)
	d.delivered.Add(1)
}

// Delivered returns how many events the handler completed.
func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }

// Panics returns how many handler invocations panicked.
func (d *Dispatcher) Panics() uint64 { return d.panics.Load() }
