package audio

import (
	"sync"
)

// FakeContext is an in-memory backend for tests. Device lists are scripted
// and may be swapped mid-test to simulate hotplug or the unlabeled
// enumeration some platforms return before capture access is granted.
type FakeContext struct {
	mu      sync.Mutex
	inputs  []DeviceInfo
	outputs []DeviceInfo

	captureErr error         // returned by the next NewCapture, then cleared
	acquire    chan struct{} // when set, NewCapture blocks until it receives

	captures []*FakeCapture
	closed   bool
}

func NewFakeContext(inputs, outputs []DeviceInfo) *FakeContext {
	return &FakeContext{inputs: inputs, outputs: outputs}
}

func (f *FakeContext) SetDevices(kind DeviceKind, devices []DeviceInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == Output {
		f.outputs = devices
	} else {
		f.inputs = devices
	}
}

// FailNextCapture makes the next NewCapture return err.
func (f *FakeContext) FailNextCapture(err error) {
	f.mu.Lock()
	f.captureErr = err
	f.mu.Unlock()
}

// BlockAcquire makes NewCapture block until the returned func is called,
// simulating an acquisition still in flight.
func (f *FakeContext) BlockAcquire() (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.acquire = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *FakeContext) Devices(kind DeviceKind) ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == Output {
		return append([]DeviceInfo(nil), f.outputs...), nil
	}
	return append([]DeviceInfo(nil), f.inputs...), nil
}

func (f *FakeContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	gate := f.acquire
	f.acquire = nil
	err := f.captureErr
	f.captureErr = nil
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	c := &FakeCapture{device: device, config: config}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

func (f *FakeContext) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// Captures returns every capture ever opened, in order.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

type FakeCapture struct {
	device *DeviceInfo
	config CaptureConfig

	mu      sync.Mutex
	cb      DataCallback
	started bool
	stopped bool
	closed  bool
}

func (c *FakeCapture) Start() error {
	c.mu.Lock()
	c.started = true
	c.stopped = false
	c.mu.Unlock()
	return nil
}

func (c *FakeCapture) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
}

func (c *FakeCapture) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *FakeCapture) SetCallback(cb DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *FakeCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

func (c *FakeCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "system default"
}

// Feed pushes interleaved S16LE data through the capture callback, as the
// platform would from its audio thread.
func (c *FakeCapture) Feed(data []byte, frames uint32) {
	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()
	if cb != nil {
		cb(data, frames)
	}
}

func (c *FakeCapture) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started && !c.stopped
}

func (c *FakeCapture) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *FakeCapture) Device() *DeviceInfo { return c.device }

func (c *FakeCapture) Config() CaptureConfig { return c.config }
