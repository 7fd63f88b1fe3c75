package monitor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"melodeus/audio"
	"melodeus/permission"
)

const (
	// DefaultWindow is the number of frames snapshotted per render tick,
	// mirroring a fixed-size time-domain analysis buffer.
	DefaultWindow = 2048

	DefaultSampleRate = 48000
)

// ErrPermissionDenied is returned by Start when the user refused microphone
// access. Recoverable: the user may retry.
var ErrPermissionDenied = errors.New("monitor: microphone permission denied")

type Config struct {
	Audio     audio.Context
	Gate      *permission.Gate
	Scheduler Scheduler
	Painter   Painter
	// Status receives human-readable progress and error messages.
	Status func(string)
	// Tap, when set, receives every raw capture buffer before analysis.
	// Used to feed an on-disk recorder.
	Tap        func(data []byte, channels int)
	SampleRate uint32
	Window     int
}

// Monitor owns the single live capture session and its render loop. All
// starts and stops funnel through the same teardown path, so a session is
// never leaked and never half-built.
type Monitor struct {
	audioCtx   audio.Context
	gate       *permission.Gate
	sched      Scheduler
	painter    Painter
	status     func(string)
	tap        func(data []byte, channels int)
	sampleRate uint32
	window     int

	resolver *Resolver
	sel      Selection

	mu         sync.Mutex
	gen        uint64
	loop       *Loop
	sess       *session
	extRelease func()
}

func New(cfg Config) *Monitor {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	return &Monitor{
		audioCtx:   cfg.Audio,
		gate:       cfg.Gate,
		sched:      cfg.Scheduler,
		painter:    cfg.Painter,
		status:     cfg.Status,
		tap:        cfg.Tap,
		sampleRate: cfg.SampleRate,
		window:     cfg.Window,
		resolver:   NewResolver(cfg.Audio, audio.Input),
	}
}

func (m *Monitor) Selection() *Selection { return &m.sel }

func (m *Monitor) InputNames() ([]string, error) { return m.resolver.Names() }

func (m *Monitor) Active() bool { return m.sel.Active() }

// Start acquires a capture session for the currently selected input and
// begins rendering. Any prior session is fully released first, so calling
// Start again after a failure or while running is always safe.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.releaseLocked()
	m.mu.Unlock()
	m.sel.setActive(false)

	name := m.sel.Input()
	dev, ok := m.resolver.Resolve(name)
	if name != "" && !ok && !m.gate.Granted() {
		// Unlabeled pre-grant enumeration is the usual reason a name
		// fails to resolve; prompt, then resolve once more.
		granted, err := m.gate.Request(ctx)
		if err != nil {
			if errors.Is(err, permission.ErrInsecureContext) {
				m.report("microphone unavailable here: %v", err)
			} else if !errors.Is(err, permission.ErrRequestPending) {
				m.report("permission request failed: %v", err)
			}
			return err
		}
		if !granted {
			m.report("microphone access denied")
			return ErrPermissionDenied
		}
		dev, ok = m.resolver.Resolve(name)
	}

	var devPtr *audio.DeviceInfo
	channels := 1
	label := "system default"
	if ok {
		d := dev
		devPtr = &d
		if d.Channels > 0 {
			channels = d.Channels
		}
		label = d.Name
	} else if name != "" {
		m.report("input %q not found, using system default", name)
	}

	capture, err := m.audioCtx.NewCapture(devPtr, audio.CaptureConfig{
		SampleRate: m.sampleRate,
		Channels:   uint32(channels),
	})
	if err != nil {
		return m.captureFailed(err)
	}
	if err := capture.Start(); err != nil {
		capture.Close()
		return m.captureFailed(err)
	}
	// A capture stream that opened is proof of consent even when the
	// explicit gate was bypassed.
	m.gate.SetGranted()

	s := newSession(capture, DeviceChannels{Name: label, Channels: channels}, m.window, m.tap)
	capture.SetCallback(s.push)

	m.mu.Lock()
	if m.gen != gen {
		// A stop (or another start) arrived while acquisition was in
		// flight: dispose of the stream instead of installing it.
		m.mu.Unlock()
		s.release()
		return nil
	}
	m.sess = s
	loop := NewLoop(m.sched, s, m.painter, m.loopError)
	m.loop = loop
	m.mu.Unlock()

	m.sel.setActive(true)
	loop.Start(ctx)
	return nil
}

// StartExternal runs the render loop over an externally-owned source, such
// as an engine AEC handle. release is invoked on teardown.
func (m *Monitor) StartExternal(ctx context.Context, src Source, release func()) {
	m.mu.Lock()
	m.gen++
	m.releaseLocked()
	loop := NewLoop(m.sched, src, m.painter, m.loopError)
	m.loop = loop
	m.extRelease = release
	m.mu.Unlock()
	m.sel.setActive(true)
	loop.Start(ctx)
}

// Stop tears down the session. Effective immediately: no tick fires after
// it returns, and an acquisition still in flight will be disposed rather
// than installed.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.gen++
	m.releaseLocked()
	m.mu.Unlock()
	m.sel.setActive(false)
}

// SelectInput records a new input choice. While monitoring is active the
// session restarts synchronously, so no stale-device frame is rendered
// after the switch.
func (m *Monitor) SelectInput(ctx context.Context, name string) error {
	if !m.sel.SetInput(name) {
		return nil
	}
	if m.sel.Active() {
		return m.Start(ctx)
	}
	return nil
}

func (m *Monitor) SelectOutput(name string) {
	m.sel.SetOutput(name)
}

// releaseLocked is the one teardown path for every exit: cancel the render
// loop, disconnect the analysis callback, stop the stream, close it — in
// that order. Idempotent.
func (m *Monitor) releaseLocked() {
	if m.loop != nil {
		m.loop.Stop()
		m.loop = nil
	}
	if m.sess != nil {
		m.sess.release()
		m.sess = nil
	}
	if m.extRelease != nil {
		m.extRelease()
		m.extRelease = nil
	}
}

func (m *Monitor) captureFailed(err error) error {
	if errors.Is(err, audio.ErrNotAllowed) {
		m.gate.SetDenied()
		m.report("microphone access denied")
		return ErrPermissionDenied
	}
	m.report("could not open capture stream: %v", err)
	return fmt.Errorf("acquiring capture stream: %w", err)
}

func (m *Monitor) loopError(err error) {
	m.report("frame update failed: %v", err)
	m.Stop()
}

func (m *Monitor) report(format string, args ...any) {
	if m.status != nil {
		m.status(fmt.Sprintf(format, args...))
	}
}

// session binds one capture stream to an analysis ring buffer. The capture
// callback pushes interleaved samples in; Frame snapshots the latest window
// and downmixes it to a mono trace.
type session struct {
	capture audio.CaptureDevice
	device  DeviceChannels
	buf     *ring
	tap     func(data []byte, channels int)
}

func newSession(capture audio.CaptureDevice, device DeviceChannels, window int, tap func([]byte, int)) *session {
	channels := device.Channels
	if channels < 1 {
		channels = 1
	}
	return &session{
		capture: capture,
		device:  device,
		buf:     newRing(window * channels),
		tap:     tap,
	}
}

// push runs on the platform audio thread: convert S16LE to normalized
// float32 and append to the ring.
func (s *session) push(data []byte, _ uint32) {
	if s.tap != nil {
		s.tap(data, s.device.Channels)
	}
	n := len(data) / 2
	if n == 0 {
		return
	}
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32767.0
	}
	s.buf.write(samples)
}

func (s *session) Frame(context.Context) ([]DeviceTrace, error) {
	buf := s.buf.snapshot()
	return Split(buf, s.device.Channels, []DeviceChannels{s.device}), nil
}

func (s *session) release() {
	s.capture.ClearCallback()
	s.capture.Stop()
	s.capture.Close()
}

// ring is a fixed-capacity sample buffer holding the most recent samples in
// arrival order.
type ring struct {
	mu   sync.Mutex
	data []float32
	pos  int
	full bool
}

func newRing(n int) *ring {
	if n < 1 {
		n = 1
	}
	return &ring{data: make([]float32, n)}
}

func (r *ring) write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		r.data[r.pos] = s
		r.pos++
		if r.pos == len(r.data) {
			r.pos = 0
			r.full = true
		}
	}
}

// snapshot returns the buffer contents oldest-first. Before the ring fills
// the unwritten tail reads as zero.
func (r *ring) snapshot() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float32, len(r.data))
	if r.full {
		n := copy(out, r.data[r.pos:])
		copy(out[n:], r.data[:r.pos])
	} else {
		copy(out, r.data[:r.pos])
	}
	return out
}
