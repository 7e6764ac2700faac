package testutil

import (
	"sync"
	"time"

	"otodo-go/internal/otodo"
)

// StubScheduler captures scheduled callbacks so tests can fire the debounce
// timer deterministically. Safe for concurrent use.
type StubScheduler struct {
	mu      sync.Mutex
	pending func()
	gen     int
	delay   time.Duration
	count   int
}

// NewStubScheduler creates an empty StubScheduler.
func NewStubScheduler() *StubScheduler {
	return &StubScheduler{}
}

// Schedule records fn as the pending callback, replacing any previous one.
// The returned cancel reports true only if this callback was still pending.
func (s *StubScheduler) Schedule(d time.Duration, fn func()) otodo.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = fn
	s.gen++
	s.delay = d
	s.count++

	gen := s.gen
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.pending == nil || s.gen != gen {
			return false
		}
		s.pending = nil
		return true
	}
}

// Fire invokes the pending callback, if any, simulating timer expiry.
func (s *StubScheduler) Fire() {
	s.mu.Lock()
	fn := s.pending
	s.pending = nil
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Pending reports whether a callback is scheduled.
func (s *StubScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Delay returns the duration passed to the most recent Schedule call.
func (s *StubScheduler) Delay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}

// ScheduleCount returns how many times Schedule has been called.
func (s *StubScheduler) ScheduleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Compile-time check that StubScheduler implements otodo.Scheduler.
var _ otodo.Scheduler = (*StubScheduler)(nil)
