// Package debounce coalesces bursts of triggers into a single call after a
// quiet period.
package debounce

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Debouncer runs an action once Window has elapsed without a new Trigger.
type Debouncer struct {
	window time.Duration
	action func()
	logger *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// New creates a debouncer for action. A nil logger falls back to slog.Default.
func New(window time.Duration, action func(), logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		window: window,
		action: action,
		logger: logger,
	}
}

// Window returns the quiescence window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Trigger (re)arms the timer. Calls after Stop are ignored.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() {
		d.fire(gen)
	})
}

// Cancel drops a pending firing without disabling future triggers.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Stop cancels any pending firing and disables the debouncer for good.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

// Pending reports whether a firing is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// Bumping the generation invalidates a timer that already started firing.
	d.gen++
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("debounced action panicked",
				"error", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	d.action()
}
