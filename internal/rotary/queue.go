package rotary

import (
	"context"
	"sync"
	"time"
)

// DefaultQueueCapacity is the number of undelivered events kept before the
// oldest one is dropped.
const DefaultQueueCapacity = 10

// Queue is a bounded FIFO between the edge path and the dispatcher.
//
// Push never blocks. When the queue is full the oldest event is discarded:
// for a live control the latest movement matters more than a complete history.
type Queue struct {
	mu      sync.Mutex
	buf     []Event
	head    int
	n       int
	dropped uint64

	// notify has capacity 1 and is signalled on every push.
	notify chan struct{}
}

// NewQueue creates a queue holding up to capacity events.
// A capacity <= 0 uses DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		buf:    make([]Event, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Push appends ev and reports whether an older event had to be dropped to make room.
func (q *Queue) Push(ev Event) (dropped bool) {
	q.mu.Lock()
	if q.n == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.n--
		q.dropped++
		dropped = true
	}
	q.buf[(q.head+q.n)%len(q.buf)] = ev
	q.n++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped
}

// TryPop removes and returns the oldest event without waiting.
func (q *Queue) TryPop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return None, false
	}
	ev := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return ev, true
}

// Pop waits for the oldest event. It gives up when timeout elapses or ctx is done.
// A timeout <= 0 waits on ctx alone.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (Event, bool) {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timeoutC = t.C
	}

	for {
		if ev, ok := q.TryPop(); ok {
			return ev, true
		}
		select {
		case <-q.notify:
		case <-timeoutC:
			return None, false
		case <-ctx.Done():
			return None, false
		}
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return len(q.buf) }

// Dropped returns how many events were discarded on overflow.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
