package sched

import (
	"sync"
	"time"
)

// SearchQuiescence is how long search input must stay unchanged before it
// participates in a filter and triggers a request.
const SearchQuiescence = 500 * time.Millisecond

// Debouncer runs a scheduled task after a quiescence window. Each call to
// Schedule cancels the pending task and restarts the window, so the task
// fires only once input has settled.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a Debouncer with the given quiescence window.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule cancels any pending task and schedules fn to run after the
// quiescence window.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels the pending task, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
