package permission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"melodeus/audio"
)

type fakeProber struct {
	mu       sync.Mutex
	usable   bool
	probeErr error
	probes   int
	block    chan struct{}
	watchFn  func(State)
}

func newFakeProber() *fakeProber {
	return &fakeProber{usable: true}
}

func (p *fakeProber) Usable() bool { return p.usable }

func (p *fakeProber) Probe(ctx context.Context) error {
	p.mu.Lock()
	p.probes++
	block := p.block
	err := p.probeErr
	p.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (p *fakeProber) Watch(fn func(State)) (func(), bool) {
	p.watchFn = fn
	return func() {}, true
}

func (p *fakeProber) probeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes
}

func TestRequestGrant(t *testing.T) {
	p := newFakeProber()
	g := NewGate(p)

	ok, err := g.Request(context.Background())
	if err != nil || !ok {
		t.Fatalf("Request = (%v, %v), want (true, nil)", ok, err)
	}
	if g.State() != StateGranted {
		t.Fatalf("state = %v, want granted", g.State())
	}

	// Granted state short-circuits: no second prompt.
	ok, err = g.Request(context.Background())
	if err != nil || !ok {
		t.Fatalf("second Request = (%v, %v), want (true, nil)", ok, err)
	}
	if p.probeCount() != 1 {
		t.Fatalf("probe count = %d, want 1", p.probeCount())
	}
}

func TestRequestDenialIsRetryable(t *testing.T) {
	p := newFakeProber()
	p.probeErr = audio.ErrNotAllowed
	g := NewGate(p)

	ok, err := g.Request(context.Background())
	if err != nil || ok {
		t.Fatalf("Request = (%v, %v), want (false, nil)", ok, err)
	}
	if g.State() != StateDenied {
		t.Fatalf("state = %v, want denied", g.State())
	}

	// Denial is not terminal: a retry prompts again.
	p.probeErr = nil
	ok, err = g.Request(context.Background())
	if err != nil || !ok {
		t.Fatalf("retry Request = (%v, %v), want (true, nil)", ok, err)
	}
	if g.State() != StateGranted {
		t.Fatalf("state after retry = %v, want granted", g.State())
	}
}

func TestInsecureContextNeverPrompts(t *testing.T) {
	p := newFakeProber()
	p.usable = false
	g := NewGate(p)

	_, err := g.Request(context.Background())
	if !errors.Is(err, ErrInsecureContext) {
		t.Fatalf("err = %v, want ErrInsecureContext", err)
	}
	if p.probeCount() != 0 {
		t.Fatal("probe issued despite insecure context")
	}
	if g.State() != StatePrompt {
		t.Fatalf("state = %v, want prompt", g.State())
	}
}

func TestSinglePendingPrompt(t *testing.T) {
	p := newFakeProber()
	p.block = make(chan struct{})
	g := NewGate(p)

	first := make(chan error, 1)
	go func() {
		_, err := g.Request(context.Background())
		first <- err
	}()

	// Wait until the first request reaches the prober.
	deadline := time.After(time.Second)
	for p.probeCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first request never probed")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := g.Request(context.Background()); !errors.Is(err, ErrRequestPending) {
		t.Fatalf("concurrent Request err = %v, want ErrRequestPending", err)
	}

	close(p.block)
	if err := <-first; err != nil {
		t.Fatalf("first Request err = %v", err)
	}
	if p.probeCount() != 1 {
		t.Fatalf("probe count = %d, want 1", p.probeCount())
	}
}

func TestProbeFailureLeavesPromptState(t *testing.T) {
	p := newFakeProber()
	p.probeErr = errors.New("stream open failed")
	g := NewGate(p)

	ok, err := g.Request(context.Background())
	if ok || err == nil {
		t.Fatalf("Request = (%v, %v), want (false, error)", ok, err)
	}
	if g.State() != StatePrompt {
		t.Fatalf("state = %v, want prompt", g.State())
	}
}

func TestExternalChangeOverwrites(t *testing.T) {
	p := newFakeProber()
	g := NewGate(p)

	if _, err := g.Request(context.Background()); err != nil {
		t.Fatal(err)
	}
	if g.State() != StateGranted {
		t.Fatalf("state = %v, want granted", g.State())
	}

	// Revocation via OS settings overrides the local grant.
	p.watchFn(StateDenied)
	if g.State() != StateDenied {
		t.Fatalf("state = %v, want denied after external revoke", g.State())
	}

	p.watchFn(StateGranted)
	if g.State() != StateGranted {
		t.Fatalf("state = %v, want granted after external grant", g.State())
	}
}

func TestCaptureSuccessImpliesGrant(t *testing.T) {
	g := NewGate(newFakeProber())
	g.SetGranted()
	if g.State() != StateGranted {
		t.Fatalf("state = %v, want granted", g.State())
	}
}
