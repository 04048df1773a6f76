package app

import (
	"sync"
	"time"
)

// Scheduler drives one cancellable deadline at a time for a room.
//
// The generation check and the expiry callback both run under mu, and Disarm takes
// mu too. Once Disarm (or a re-Arm) returns, no callback from an earlier arming can
// still fire. Because the callback holds mu, it must not block.
type Scheduler struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Arm replaces any pending deadline with a new one and returns its generation.
func (s *Scheduler) Arm(d time.Duration, onExpire func(gen uint64)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return
		}
		s.timer = nil
		onExpire(gen)
	})
	return gen
}

// Disarm cancels the pending deadline. It is safe to call repeatedly.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
