package hotkey

// Fake drives the chord channels from tests and the headless harness.
type Fake struct {
	down chan struct{}
	up   chan struct{}

	RegisterErr  error
	Registered   bool
	Unregistered bool
}

func NewFake() *Fake {
	return &Fake{
		down: make(chan struct{}, 1),
		up:   make(chan struct{}, 1),
	}
}

func (f *Fake) Register() error {
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.Registered = true
	return nil
}

func (f *Fake) Unregister() { f.Unregistered = true }

func (f *Fake) Keydown() <-chan struct{} { return f.down }

func (f *Fake) Keyup() <-chan struct{} { return f.up }

// Press emulates one full chord press and release.
func (f *Fake) Press() {
	f.down <- struct{}{}
	f.up <- struct{}{}
}
