// Package permission tracks microphone consent: prompt, granted or denied.
// A Gate serializes consent prompts, keeps the last known outcome, and
// follows out-of-band changes (OS settings) when the platform can report
// them.
package permission

import (
	"context"
	"errors"
	"sync"

	"melodeus/audio"
)

type State int

const (
	StatePrompt State = iota
	StateGranted
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	}
	return "prompt"
}

var (
	// ErrInsecureContext means the execution context cannot host a consent
	// prompt at all (no audio backend, sandboxed or headless process). The
	// caller disables capture until the context changes; no prompt is
	// issued.
	ErrInsecureContext = errors.New("permission: context cannot request capture access")

	// ErrRequestPending means a prompt is already on screen. The second
	// caller backs off instead of stacking prompts.
	ErrRequestPending = errors.New("permission: request already pending")
)

// Prober is the platform half of the gate: it knows whether consent can be
// requested here, how to trigger the prompt, and (optionally) how to observe
// consent changes made outside the process.
type Prober interface {
	Usable() bool
	// Probe triggers the consent flow, typically by opening and immediately
	// closing a capture stream. Returns audio.ErrNotAllowed on denial.
	Probe(ctx context.Context) error
	// Watch registers fn for out-of-band state changes. ok is false when
	// the platform has no change notifications.
	Watch(fn func(State)) (stop func(), ok bool)
}

type Gate struct {
	prober Prober

	mu       sync.Mutex
	state    State
	pending  bool
	onChange func(State)
	unwatch  func()
}

func NewGate(p Prober) *Gate {
	g := &Gate{prober: p}
	if stop, ok := p.Watch(g.external); ok {
		g.unwatch = stop
	}
	return g
}

// OnChange registers a callback invoked (without the gate lock held) after
// every state transition.
func (g *Gate) OnChange(fn func(State)) {
	g.mu.Lock()
	g.onChange = fn
	g.mu.Unlock()
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) Granted() bool {
	return g.State() == StateGranted
}

// Request runs the consent flow. It returns (true, nil) on grant,
// (false, nil) on an explicit denial, and (false, err) when the flow could
// not run: insecure context, a prompt already pending, or a probe failure
// unrelated to consent. At most one prompt is outstanding at a time.
func (g *Gate) Request(ctx context.Context) (bool, error) {
	if !g.prober.Usable() {
		return false, ErrInsecureContext
	}

	g.mu.Lock()
	if g.pending {
		g.mu.Unlock()
		return false, ErrRequestPending
	}
	if g.state == StateGranted {
		g.mu.Unlock()
		return true, nil
	}
	g.pending = true
	g.mu.Unlock()

	err := g.prober.Probe(ctx)

	g.mu.Lock()
	g.pending = false
	if err == nil {
		g.setLocked(StateGranted)
		g.mu.Unlock()
		return true, nil
	}
	if errors.Is(err, audio.ErrNotAllowed) {
		g.setLocked(StateDenied)
		g.mu.Unlock()
		return false, nil
	}
	g.mu.Unlock()
	return false, err
}

// SetGranted records consent proven by other means: a capture stream that
// opened successfully implies the user consented even if the explicit gate
// was bypassed.
func (g *Gate) SetGranted() {
	g.mu.Lock()
	g.setLocked(StateGranted)
	g.mu.Unlock()
}

// SetDenied records a denial observed during capture (NotAllowed from the
// backend on stream open).
func (g *Gate) SetDenied() {
	g.mu.Lock()
	g.setLocked(StateDenied)
	g.mu.Unlock()
}

// external applies an out-of-band change reported by the platform. It
// overwrites local state unconditionally.
func (g *Gate) external(s State) {
	g.mu.Lock()
	g.setLocked(s)
	g.mu.Unlock()
}

func (g *Gate) setLocked(s State) {
	if g.state == s {
		return
	}
	g.state = s
	if fn := g.onChange; fn != nil {
		go fn(s)
	}
}

func (g *Gate) Close() {
	if g.unwatch != nil {
		g.unwatch()
	}
}
