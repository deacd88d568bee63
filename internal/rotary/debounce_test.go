package rotary

import (
	"testing"
	"time"
)

func TestDebouncer_FirstEdgeAccepted(t *testing.T) {
	d := Debouncer{Window: 5 * time.Millisecond}
	if !d.Accept(time.Unix(100, 0)) {
		t.Fatalf("expected first edge to be accepted")
	}
}

func TestDebouncer_RejectsInsideWindow(t *testing.T) {
	t0 := time.Unix(100, 0)
	d := Debouncer{Window: 5 * time.Millisecond}

	if !d.Accept(t0) {
		t.Fatalf("expected first edge to be accepted")
	}
	if d.Accept(t0.Add(4 * time.Millisecond)) {
		t.Fatalf("expected edge 4ms later to be rejected")
	}
	if !d.Accept(t0.Add(5 * time.Millisecond)) {
		t.Fatalf("expected edge exactly one window later to be accepted")
	}
}

func TestDebouncer_RejectedEdgesDoNotExtendWindow(t *testing.T) {
	t0 := time.Unix(100, 0)
	d := Debouncer{Window: 5 * time.Millisecond}
	d.Accept(t0)

	// A burst of bounce every millisecond must not push the window out.
	for i := 1; i <= 4; i++ {
		if d.Accept(t0.Add(time.Duration(i) * time.Millisecond)) {
			t.Fatalf("expected bounce at +%dms to be rejected", i)
		}
	}
	if !d.Accept(t0.Add(6 * time.Millisecond)) {
		t.Fatalf("expected edge at +6ms to be accepted (window measured from last accepted edge)")
	}

	last, ok := d.Last()
	if !ok || !last.Equal(t0.Add(6*time.Millisecond)) {
		t.Fatalf("expected last accepted edge at +6ms, got %v (ok=%v)", last, ok)
	}
}
