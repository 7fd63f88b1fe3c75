package monitor

import (
	"sync"
	"time"
)

// Scheduler is a cooperative per-frame scheduler: Schedule arms at most one
// pending callback, replacing any previous one; Cancel synchronously
// guarantees no armed callback will fire. Decoupled from any UI runtime so
// the render loop is testable with a fake.
type Scheduler interface {
	Schedule(fn func())
	Cancel()
}

// DefaultFrameInterval approximates display refresh cadence.
const DefaultFrameInterval = time.Second / 60

// FrameScheduler arms callbacks on a wall-clock timer at frame cadence.
type FrameScheduler struct {
	interval time.Duration

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

func NewFrameScheduler(interval time.Duration) *FrameScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameScheduler{interval: interval}
}

func (s *FrameScheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := s.seq
	if s.timer != nil {
		s.timer.Stop()
	}
	// The seq check makes a stale timer that already fired into a no-op
	// even if it raced with Cancel.
	s.timer = time.AfterFunc(s.interval, func() {
		s.mu.Lock()
		if s.seq != id {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		fn()
	})
}

func (s *FrameScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
