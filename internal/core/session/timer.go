package session

import "time"

// Clock tells time and schedules single-shot callbacks. Tests substitute a
// manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancelable scheduled callback.
type Timer interface {
	Stop() bool
}

// SystemClock schedules on the runtime timer.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// idleTimer is the one live expiry handle of a Store. gen identifies the arm
// that created it; a callback whose gen is stale does nothing.
type idleTimer struct {
	gen   uint64
	timer Timer
}

func (t *idleTimer) cancel() {
	if t != nil && t.timer != nil {
		t.timer.Stop()
	}
}
