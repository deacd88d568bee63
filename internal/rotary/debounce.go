package rotary

import "time"

// Debouncer accepts an edge only when at least Window has passed since the
// last accepted edge. Rejected edges leave the reference time alone, so a burst
// of bounce cannot keep extending the window.
type Debouncer struct {
	Window time.Duration

	last   time.Time
	primed bool
}

// Accept reports whether an edge at now passes the filter.
func (d *Debouncer) Accept(now time.Time) bool {
	if d.primed && now.Sub(d.last) < d.Window {
		return false
	}
	d.last = now
	d.primed = true
	return true
}

// Last returns the time of the last accepted edge.
func (d *Debouncer) Last() (time.Time, bool) {
	return d.last, d.primed
}
