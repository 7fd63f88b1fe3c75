package monitor

import (
	"context"
	"sync"
)

// Source produces the traces for one render tick: typically a capture
// session's analysis buffer, or an engine handle's per-frame update.
type Source interface {
	Frame(ctx context.Context) ([]DeviceTrace, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context) ([]DeviceTrace, error)

func (f SourceFunc) Frame(ctx context.Context) ([]DeviceTrace, error) { return f(ctx) }

// Loop drives a Source at frame cadence through a Scheduler. Each tick pulls
// one frame, paints it, and arms at most one successor, so the loop never
// runs concurrently with itself. Stop is synchronous: after it returns no
// further tick fires. A frame error stops the loop instead of retrying, to
// avoid a tight error loop; the error is handed to onErr.
type Loop struct {
	sched Scheduler
	src   Source
	paint Painter
	onErr func(error)

	mu      sync.Mutex
	ctx     context.Context
	running bool
}

func NewLoop(sched Scheduler, src Source, paint Painter, onErr func(error)) *Loop {
	return &Loop{sched: sched, src: src, paint: paint, onErr: onErr}
}

func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.ctx = ctx
	l.mu.Unlock()
	l.sched.Schedule(l.tick)
}

func (l *Loop) Stop() {
	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
	l.sched.Cancel()
}

func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) tick() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	ctx := l.ctx
	l.mu.Unlock()

	traces, err := l.src.Frame(ctx)
	if err != nil {
		l.Stop()
		if l.onErr != nil {
			l.onErr(err)
		}
		return
	}
	l.paint.Paint(traces)

	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	l.sched.Schedule(l.tick)
}
