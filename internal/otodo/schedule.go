package otodo

import "time"

// CancelFunc cancels a scheduled call. It reports whether the cancellation
// happened before the call ran.
type CancelFunc func() bool

// Scheduler is a cancellable delayed-task abstraction. The autosave debounce
// runs through a Scheduler rather than an ambient timer so that Flush can
// deterministically preempt a pending save.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) CancelFunc
}

// TimerScheduler schedules on real wall-clock timers.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return t.Stop
}
