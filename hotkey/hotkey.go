// Package hotkey delivers the global Ctrl+Shift+Space chord used to toggle
// monitoring without focusing the app. On Linux it reads evdev directly
// because X11 grabs do not reach Wayland sessions.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
