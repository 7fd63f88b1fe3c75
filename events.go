package main

import "melodeus/monitor"

// EventSink abstracts the display layer so both the Bubble Tea TUI
// and the Fyne GUI can receive the same monitoring events.
type EventSink interface {
	MonitorStart()
	MonitorStop()
	Traces(traces []monitor.DeviceTrace)
	StatusLine(text string)
	DeviceLine(text string)
	PermissionLine(text string)
	ToneState(on bool)
}

// sink is the active display; the TUI installs itself here, -gui swaps in
// the Fyne app.
var sink EventSink = nopSink{}

type nopSink struct{}

func (nopSink) MonitorStart() {}

func (nopSink) MonitorStop() {}

func (nopSink) Traces([]monitor.DeviceTrace) {}

func (nopSink) StatusLine(string) {}

func (nopSink) DeviceLine(string) {}

func (nopSink) PermissionLine(string) {}

func (nopSink) ToneState(bool) {}
