package dispatch

import "time"

// Scheduler runs a callback once after a delay. Fire-at-most-once, no
// cancellation: a callback firing after its target state is gone must
// fail gracefully through the normal classification path.
type Scheduler interface {
	RunAfter(d time.Duration, fn func())
}

// TimerScheduler schedules callbacks on process-local timers.
type TimerScheduler struct{}

// RunAfter runs fn on its own goroutine after d elapses.
func (TimerScheduler) RunAfter(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
