// Package notify coalesces bursts of index change events into a single
// downstream "index updated" signal.
package notify

import (
	"sync"
	"time"
)

// DefaultWindow is the quiet period required before a signal fires.
const DefaultWindow = 100 * time.Millisecond

// Debouncer restarts a timer on every Notify call; the callback fires once
// when the timer elapses without being restarted. An unbroken stream of
// calls suppresses all emission until the stream pauses (debounce, not
// throttle).
type Debouncer struct {
	window time.Duration
	fn     func()

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// New creates a debouncer invoking fn after window of quiet. A zero or
// negative window uses DefaultWindow.
func New(window time.Duration, fn func()) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{window: window, fn: fn}
}

// Notify restarts the quiet timer.
func (d *Debouncer) Notify() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	fn := d.fn
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Close stops any pending timer. Subsequent Notify calls are no-ops.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
