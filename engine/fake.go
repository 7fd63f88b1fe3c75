package engine

import (
	"context"
	"sync"
)

// FakeEngine is a scripted Engine for tests and the headless harness.
type FakeEngine struct {
	mu      sync.Mutex
	devices DeviceList
	frames  []Frame
	next    int
	aecErr  error
	listErr error
	aecs    []*FakeAEC
	tones   []*FakeTone
	closed  bool
}

func NewFakeEngine(devices DeviceList) *FakeEngine {
	return &FakeEngine{devices: devices}
}

// ScriptFrames sets the frames Update hands out in order; the last one
// repeats once the script runs dry.
func (e *FakeEngine) ScriptFrames(frames ...Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = frames
	e.next = 0
}

func (e *FakeEngine) FailEnableAEC(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aecErr = err
}

func (e *FakeEngine) FailListDevices(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listErr = err
}

func (e *FakeEngine) ListDevices() (DeviceList, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listErr != nil {
		return DeviceList{}, e.listErr
	}
	return e.devices, nil
}

func (e *FakeEngine) EnableAEC(_ context.Context, inputName, outputName string) (AECHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.aecErr != nil {
		err := e.aecErr
		e.aecErr = nil
		return nil, err
	}
	if _, ok := pickDevice(e.devices.Inputs, inputName); !ok {
		return nil, ErrNoInputDevice
	}
	if _, ok := pickDevice(e.devices.Outputs, outputName); !ok {
		return nil, ErrNoOutputDevice
	}
	h := &FakeAEC{engine: e}
	e.aecs = append(e.aecs, h)
	return h, nil
}

func (e *FakeEngine) StartTone(string) (ToneHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := &FakeTone{}
	e.tones = append(e.tones, t)
	return t, nil
}

func (e *FakeEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}

func (e *FakeEngine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *FakeEngine) AECs() []*FakeAEC {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*FakeAEC(nil), e.aecs...)
}

func (e *FakeEngine) Tones() []*FakeTone {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*FakeTone(nil), e.tones...)
}

func (e *FakeEngine) nextFrame() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.frames) == 0 {
		return Frame{}
	}
	f := e.frames[e.next]
	if e.next < len(e.frames)-1 {
		e.next++
	}
	return f
}

type FakeAEC struct {
	engine *FakeEngine

	mu        sync.Mutex
	closed    bool
	updateErr error
	updates   int
}

func (h *FakeAEC) FailUpdate(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updateErr = err
}

func (h *FakeAEC) Update(context.Context) (Frame, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return Frame{}, ErrClosed
	}
	if h.updateErr != nil {
		err := h.updateErr
		h.mu.Unlock()
		return Frame{}, err
	}
	h.updates++
	h.mu.Unlock()
	return h.engine.nextFrame(), nil
}

func (h *FakeAEC) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func (h *FakeAEC) ClosedState() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *FakeAEC) Updates() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.updates
}

type FakeTone struct {
	mu      sync.Mutex
	stopped bool
}

func (t *FakeTone) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *FakeTone) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
