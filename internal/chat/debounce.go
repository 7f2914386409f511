package chat

import (
	"sync"
	"time"
)

// debouncer runs a function once after a quiet period. Arm cancels any
// pending run and reschedules (trailing-edge semantics): of a burst of
// Arm calls within the window, only the last one fires.
type debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

// Arm schedules fn to run after the delay, replacing any pending run.
func (d *debouncer) Arm(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Cancel drops any pending run.
func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
