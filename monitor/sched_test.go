package monitor

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFrameSchedulerFiresOnce(t *testing.T) {
	s := NewFrameScheduler(time.Millisecond)
	var fired atomic.Int32
	s.Schedule(func() { fired.Add(1) })
	time.Sleep(20 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times, want 1", got)
	}
}

func TestFrameSchedulerCancelIsSynchronous(t *testing.T) {
	s := NewFrameScheduler(time.Millisecond)
	var fired atomic.Int32
	s.Schedule(func() { fired.Add(1) })
	s.Cancel()
	time.Sleep(20 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("fired %d times after cancel, want 0", got)
	}
}

func TestFrameSchedulerReplacesPending(t *testing.T) {
	s := NewFrameScheduler(time.Millisecond)
	var first, second atomic.Int32
	s.Schedule(func() { first.Add(1) })
	s.Schedule(func() { second.Add(1) })
	time.Sleep(20 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatal("replaced callback still fired")
	}
	if second.Load() != 1 {
		t.Fatalf("second fired %d times, want 1", second.Load())
	}
}
