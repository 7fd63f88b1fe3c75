package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"melodeus/audio"
	"melodeus/permission"
)

func grantedGate(ctx audio.Context) *permission.Gate {
	g := permission.NewGate(permission.NewCaptureProber(ctx))
	g.SetGranted()
	return g
}

func testMonitor(ctx audio.Context, gate *permission.Gate) (*Monitor, *fakeScheduler, *recordingPainter) {
	sched := &fakeScheduler{}
	painter := &recordingPainter{}
	m := New(Config{
		Audio:     ctx,
		Gate:      gate,
		Scheduler: sched,
		Painter:   painter,
	})
	return m, sched, painter
}

func TestStartReplacesPriorSession(t *testing.T) {
	ctx := audio.NewFakeContext([]audio.DeviceInfo{
		{ID: "a", Name: "Mic A", Channels: 1},
		{ID: "b", Name: "Mic B", Channels: 2},
	}, nil)
	m, _, _ := testMonitor(ctx, grantedGate(ctx))

	m.Selection().SetInput("Mic A")
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.SelectInput(context.Background(), "Mic B"); err != nil {
		t.Fatal(err)
	}

	captures := ctx.Captures()
	if len(captures) != 2 {
		t.Fatalf("%d captures opened, want 2", len(captures))
	}
	if !captures[0].Closed() {
		t.Fatal("prior session's stream not closed after device switch")
	}
	if !captures[1].Started() {
		t.Fatal("new session's stream not running")
	}
	if captures[1].Device() == nil || captures[1].Device().ID != "b" {
		t.Fatalf("new capture on %+v, want device b", captures[1].Device())
	}
	if !m.Active() {
		t.Fatal("monitor inactive after switch")
	}
}

func TestUnknownDeviceFallsBackToDefault(t *testing.T) {
	ctx := audio.NewFakeContext([]audio.DeviceInfo{
		{ID: "a", Name: "Mic A", Channels: 1},
	}, nil)
	var status string
	gate := grantedGate(ctx)
	sched := &fakeScheduler{}
	m := New(Config{
		Audio:     ctx,
		Gate:      gate,
		Scheduler: sched,
		Painter:   &recordingPainter{},
		Status:    func(s string) { status = s },
	})

	m.Selection().SetInput("Ghost Mic")
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start with unknown device failed: %v", err)
	}

	captures := ctx.Captures()
	if len(captures) != 1 {
		t.Fatalf("%d captures, want 1", len(captures))
	}
	if captures[0].Device() != nil {
		t.Fatalf("capture bound to %+v, want system default", captures[0].Device())
	}
	if status == "" {
		t.Fatal("no status message for the fallback")
	}
}

func TestPermissionDenialLeavesRetryableState(t *testing.T) {
	// No labeled devices yet and no grant: starting must consult the gate.
	ctx := audio.NewFakeContext(nil, nil)
	gate := permission.NewGate(permission.NewCaptureProber(ctx))
	m, _, _ := testMonitor(ctx, gate)

	ctx.FailNextCapture(audio.ErrNotAllowed) // the probe stream is refused
	m.Selection().SetInput("USB Mic")
	err := m.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if gate.State() != permission.StateDenied {
		t.Fatalf("gate state = %v, want denied", gate.State())
	}
	if m.Active() {
		t.Fatal("monitor active after denial")
	}

	// The user relents: the same entry point succeeds with no special
	// recovery step.
	ctx.SetDevices(audio.Input, []audio.DeviceInfo{{ID: "usb", Name: "USB Mic", Channels: 1}})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !m.Active() {
		t.Fatal("monitor inactive after successful retry")
	}
}

func TestInsecureContextDisablesStart(t *testing.T) {
	ctx := audio.NewFakeContext(nil, nil)
	// A nil backend makes the prober report an unusable context.
	gate := permission.NewGate(permission.NewCaptureProber(nil))
	m, _, _ := testMonitor(ctx, gate)

	m.Selection().SetInput("USB Mic")
	err := m.Start(context.Background())
	if !errors.Is(err, permission.ErrInsecureContext) {
		t.Fatalf("err = %v, want ErrInsecureContext", err)
	}
	if len(ctx.Captures()) != 0 {
		t.Fatal("capture attempted despite insecure context")
	}
}

// A grant can change what enumeration returns; the resolver must pick the
// labeled device up on its post-grant rebuild.
type relabelingProber struct {
	ctx     *audio.FakeContext
	labeled []audio.DeviceInfo
}

func (p *relabelingProber) Usable() bool { return true }

func (p *relabelingProber) Probe(context.Context) error {
	p.ctx.SetDevices(audio.Input, p.labeled)
	return nil
}

func (p *relabelingProber) Watch(func(permission.State)) (func(), bool) { return nil, false }

func TestGrantUnlocksDeviceResolution(t *testing.T) {
	ctx := audio.NewFakeContext([]audio.DeviceInfo{{ID: "0", Name: ""}}, nil)
	gate := permission.NewGate(&relabelingProber{
		ctx:     ctx,
		labeled: []audio.DeviceInfo{{ID: "usb-1", Name: "USB Mic", Channels: 2}},
	})
	m, _, _ := testMonitor(ctx, gate)

	m.Selection().SetInput("USB Mic")
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	captures := ctx.Captures()
	if len(captures) != 1 {
		t.Fatalf("%d captures, want 1", len(captures))
	}
	if captures[0].Device() == nil || captures[0].Device().ID != "usb-1" {
		t.Fatalf("capture bound to %+v, want the post-grant exact device", captures[0].Device())
	}
	if captures[0].Config().Channels != 2 {
		t.Fatalf("capture channels = %d, want the device's 2", captures[0].Config().Channels)
	}
}

func TestCaptureSuccessMarksGranted(t *testing.T) {
	ctx := audio.NewFakeContext(nil, nil)
	gate := permission.NewGate(permission.NewCaptureProber(ctx))
	m, _, _ := testMonitor(ctx, gate)

	// Default device, no explicit prompt needed: the successful open
	// itself proves consent.
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gate.State() != permission.StateGranted {
		t.Fatalf("gate state = %v, want granted", gate.State())
	}
}

func TestAcquisitionFailureLeavesEmptySession(t *testing.T) {
	ctx := audio.NewFakeContext(nil, nil)
	m, _, _ := testMonitor(ctx, grantedGate(ctx))

	ctx.FailNextCapture(errors.New("device busy"))
	err := m.Start(context.Background())
	if err == nil || errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want a plain acquisition error", err)
	}
	if m.Active() {
		t.Fatal("monitor active after acquisition failure")
	}

	// Idempotent teardown-then-retry.
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !m.Active() {
		t.Fatal("monitor inactive after retry")
	}
}

func TestStopPreventsFurtherPaints(t *testing.T) {
	ctx := audio.NewFakeContext(nil, nil)
	m, sched, painter := testMonitor(ctx, grantedGate(ctx))

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !sched.RunNext() {
		t.Fatal("no tick armed after start")
	}
	if painter.count() != 1 {
		t.Fatalf("paints = %d, want 1", painter.count())
	}

	m.Stop()
	if sched.RunNext() {
		t.Fatal("tick fired after stop")
	}
	if painter.count() != 1 {
		t.Fatalf("paints after stop = %d, want 1", painter.count())
	}
	if !ctx.Captures()[0].Closed() {
		t.Fatal("stream not closed on stop")
	}
}

func TestLateAcquisitionIsDisposed(t *testing.T) {
	ctx := audio.NewFakeContext(nil, nil)
	m, sched, _ := testMonitor(ctx, grantedGate(ctx))

	release := ctx.BlockAcquire()
	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()

	time.Sleep(10 * time.Millisecond) // let Start reach the blocked acquire
	m.Stop()
	release()

	if err := <-done; err != nil {
		t.Fatalf("start returned %v", err)
	}
	captures := ctx.Captures()
	if len(captures) != 1 {
		t.Fatalf("%d captures, want 1", len(captures))
	}
	if !captures[0].Closed() {
		t.Fatal("late-completing acquisition was installed instead of disposed")
	}
	if m.Active() {
		t.Fatal("monitor active after stop")
	}
	if sched.RunNext() {
		t.Fatal("tick armed for a disposed session")
	}
}

func TestStartExternalReleasesOnStop(t *testing.T) {
	ctx := audio.NewFakeContext(nil, nil)
	m, sched, painter := testMonitor(ctx, grantedGate(ctx))

	released := false
	src := constSource([]DeviceTrace{{Name: "aec"}})
	m.StartExternal(context.Background(), src, func() { released = true })

	sched.RunNext()
	if painter.count() != 1 {
		t.Fatalf("paints = %d, want 1", painter.count())
	}

	m.Stop()
	if !released {
		t.Fatal("external source not released on stop")
	}
	if sched.RunNext() {
		t.Fatal("tick fired after stop")
	}
}

func TestSessionFrameDownmixesCapture(t *testing.T) {
	ctx := audio.NewFakeContext([]audio.DeviceInfo{
		{ID: "s", Name: "Stereo Mic", Channels: 2},
	}, nil)
	m, sched, painter := testMonitor(ctx, grantedGate(ctx))

	m.Selection().SetInput("Stereo Mic")
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Feed one interleaved stereo frame: L=+32767, R=-32767 cancels to 0;
	// then L=R=16384 averages to ~0.5.
	capture := ctx.Captures()[0]
	capture.Feed([]byte{
		0xff, 0x7f, 0x01, 0x80,
		0x00, 0x40, 0x00, 0x40,
	}, 2)

	sched.RunNext()
	painter.mu.Lock()
	defer painter.mu.Unlock()
	if len(painter.last) != 1 {
		t.Fatalf("%d traces, want 1", len(painter.last))
	}
	trace := painter.last[0]
	if trace.Name != "Stereo Mic" {
		t.Fatalf("trace name %q", trace.Name)
	}
	n := len(trace.Samples)
	if n < 2 {
		t.Fatalf("trace too short: %d", n)
	}
	// The ring is zero-filled until the window fills; the fed frames sit
	// at the front.
	if got := trace.Samples[0]; got < -0.001 || got > 0.001 {
		t.Errorf("frame 0 = %v, want ~0 (L/R cancel)", got)
	}
	if got := trace.Samples[1]; got < 0.49 || got > 0.51 {
		t.Errorf("frame 1 = %v, want ~0.5", got)
	}
}
