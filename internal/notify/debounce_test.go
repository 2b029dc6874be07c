package notify

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebounce_BurstYieldsOneSignal(t *testing.T) {
	var fired atomic.Int32
	d := New(40*time.Millisecond, func() { fired.Add(1) })
	defer d.Close()

	for i := 0; i < 20; i++ {
		d.Notify()
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(120 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("burst produced %d signals, want 1", got)
	}
}

func TestDebounce_SpacedCallsEachFire(t *testing.T) {
	var fired atomic.Int32
	d := New(20*time.Millisecond, func() { fired.Add(1) })
	defer d.Close()

	for i := 0; i < 3; i++ {
		d.Notify()
		time.Sleep(80 * time.Millisecond)
	}

	if got := fired.Load(); got != 3 {
		t.Errorf("spaced notifies produced %d signals, want 3", got)
	}
}

func TestDebounce_CloseSuppressesPending(t *testing.T) {
	var fired atomic.Int32
	d := New(30*time.Millisecond, func() { fired.Add(1) })

	d.Notify()
	d.Close()
	d.Notify() // no-op after close

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("closed debouncer fired %d times", got)
	}
}
