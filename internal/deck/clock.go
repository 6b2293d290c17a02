package deck

import (
	"sync"
	"time"
)

// Clock schedules callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback. Stop reports whether it prevented the call.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// task holds at most one pending trigger. Scheduling replaces the previous
// trigger and Cancel drops it; a replaced or cancelled trigger never runs.
// Callers still re-check their own state in the callback, since a trigger can
// fire concurrently with Cancel.
type task struct {
	clock Clock

	mu    sync.Mutex
	gen   uint64
	timer Timer
}

func newTask(clock Clock) *task {
	return &task{clock: clock}
}

func (t *task) Schedule(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	gen := t.gen
	t.timer = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if gen != t.gen {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.gen++
		t.mu.Unlock()
		fn()
	})
}

func (t *task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Pending reports whether a trigger is waiting to fire.
func (t *task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *task) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}
