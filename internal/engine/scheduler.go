package engine

import (
	"sync"
	"time"
)

// DefaultDebounceInterval is how long a file must stay quiet after its last
// edit before a push fires.
const DefaultDebounceInterval = 2 * time.Second

// scheduler coalesces bursts of edits to the same file into a single
// downstream push: rescheduling a path cancels its pending timer and starts
// a fresh one, so only the content at fire time is pushed. Timers for
// different files are independent.
type scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	delay  time.Duration
	fire   func(path string)
}

func newScheduler(delay time.Duration, fire func(path string)) *scheduler {
	if delay <= 0 {
		delay = DefaultDebounceInterval
	}
	return &scheduler{
		timers: make(map[string]*time.Timer),
		delay:  delay,
		fire:   fire,
	}
}

// schedule arms (or re-arms) the debounce timer for path.
func (s *scheduler) schedule(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[path]; ok {
		t.Stop()
	}
	s.timers[path] = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.timers, path)
		s.mu.Unlock()
		s.fire(path)
	})
}

// cancel stops the pending timer for path, if any.
func (s *scheduler) cancel(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[path]; ok {
		t.Stop()
		delete(s.timers, path)
	}
}

// cancelAll stops every pending timer. Used on session teardown.
func (s *scheduler) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, t := range s.timers {
		t.Stop()
		delete(s.timers, path)
	}
}

// pending returns the number of armed timers.
func (s *scheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
