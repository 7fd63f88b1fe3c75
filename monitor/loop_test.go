package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeScheduler hands control of tick timing to the test.
type fakeScheduler struct {
	mu      sync.Mutex
	pending func()
}

func (s *fakeScheduler) Schedule(fn func()) {
	s.mu.Lock()
	s.pending = fn
	s.mu.Unlock()
}

func (s *fakeScheduler) Cancel() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// RunNext fires the armed callback, if any, and reports whether one fired.
func (s *fakeScheduler) RunNext() bool {
	s.mu.Lock()
	fn := s.pending
	s.pending = nil
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

type recordingPainter struct {
	mu     sync.Mutex
	paints int
	last   []DeviceTrace
}

func (p *recordingPainter) Paint(traces []DeviceTrace) {
	p.mu.Lock()
	p.paints++
	p.last = traces
	p.mu.Unlock()
}

func (p *recordingPainter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paints
}

func constSource(traces []DeviceTrace) Source {
	return SourceFunc(func(context.Context) ([]DeviceTrace, error) {
		return traces, nil
	})
}

func TestLoopPaintsAndReschedules(t *testing.T) {
	sched := &fakeScheduler{}
	painter := &recordingPainter{}
	loop := NewLoop(sched, constSource([]DeviceTrace{{Name: "mic"}}), painter, nil)

	loop.Start(context.Background())
	for i := 1; i <= 3; i++ {
		if !sched.RunNext() {
			t.Fatalf("no tick armed before paint %d", i)
		}
		if painter.count() != i {
			t.Fatalf("paints = %d, want %d", painter.count(), i)
		}
	}
}

func TestLoopStopPreventsFurtherTicks(t *testing.T) {
	sched := &fakeScheduler{}
	painter := &recordingPainter{}
	loop := NewLoop(sched, constSource(nil), painter, nil)

	loop.Start(context.Background())
	sched.RunNext()
	if painter.count() != 1 {
		t.Fatalf("paints = %d, want 1", painter.count())
	}

	loop.Stop()
	// Simulate a straggling frame callback: nothing may paint.
	if sched.RunNext() {
		t.Fatal("tick fired after Stop")
	}
	if painter.count() != 1 {
		t.Fatalf("paints after stop = %d, want 1", painter.count())
	}
}

func TestLoopStopDuringTickSkipsSuccessor(t *testing.T) {
	sched := &fakeScheduler{}
	painter := &recordingPainter{}
	var loop *Loop
	src := SourceFunc(func(context.Context) ([]DeviceTrace, error) {
		// A stop arriving mid-tick must suppress the reschedule.
		loop.Stop()
		return nil, nil
	})
	loop = NewLoop(sched, src, painter, nil)

	loop.Start(context.Background())
	sched.RunNext()
	if sched.RunNext() {
		t.Fatal("successor armed despite stop during tick")
	}
}

func TestLoopErrorStopsWithoutRetry(t *testing.T) {
	sched := &fakeScheduler{}
	painter := &recordingPainter{}
	wantErr := errors.New("engine update failed")
	var gotErr error
	src := SourceFunc(func(context.Context) ([]DeviceTrace, error) {
		return nil, wantErr
	})
	loop := NewLoop(sched, src, painter, func(err error) { gotErr = err })

	loop.Start(context.Background())
	sched.RunNext()

	if !errors.Is(gotErr, wantErr) {
		t.Fatalf("onErr got %v, want %v", gotErr, wantErr)
	}
	if painter.count() != 0 {
		t.Fatal("painted a failed frame")
	}
	if loop.Running() {
		t.Fatal("loop still running after frame error")
	}
	if sched.RunNext() {
		t.Fatal("successor armed after frame error")
	}
}

func TestLoopSchedulesOneSuccessorPerTick(t *testing.T) {
	sched := &fakeScheduler{}
	loop := NewLoop(sched, constSource(nil), &recordingPainter{}, nil)

	loop.Start(context.Background())
	sched.RunNext()
	if !sched.RunNext() {
		t.Fatal("no successor armed")
	}
	// After consuming the successor exactly one more must be armed.
	if !sched.RunNext() {
		t.Fatal("second successor missing")
	}
}
