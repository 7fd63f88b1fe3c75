// Package engine is the control surface for the audio-processing engine:
// device enumeration, echo-cancelled capture with a per-frame update, and
// tone playback. The cancellation DSP itself is an opaque collaborator
// behind the Canceller interface.
package engine

import (
	"context"
	"errors"
)

const (
	// TargetSampleRate is the rate the engine processes at.
	TargetSampleRate = 16000
	// FrameSizeMS is the duration of one processing frame.
	FrameSizeMS = 10
	// FilterLengthMS is the echo filter tail.
	FilterLengthMS = 100
)

// FrameSize is samples per device channel per processing frame.
const FrameSize = TargetSampleRate * FrameSizeMS / 1000

var (
	ErrNoInputDevice  = errors.New("engine: no input device available")
	ErrNoOutputDevice = errors.New("engine: no output device available")
	ErrClosed         = errors.New("engine: handle closed")
)

// DeviceMeta names a device and its channel count as the engine reports it.
type DeviceMeta struct {
	Name     string
	Channels int
}

type DeviceList struct {
	Inputs        []DeviceMeta
	Outputs       []DeviceMeta
	DefaultInput  string
	DefaultOutput string
}

// Frame is one update's worth of monitoring data: interleaved raw input and
// output samples, the cancellation residual, and the per-device channel
// layout needed to demultiplex them.
type Frame struct {
	Inputs         []float32
	Outputs        []float32
	AEC            []float32
	InputChannels  int
	OutputChannels int
	InputDevices   []DeviceMeta
	OutputDevices  []DeviceMeta
}

// AECHandle is a live echo-cancelled capture. Update is called once per
// render tick.
type AECHandle interface {
	Update(ctx context.Context) (Frame, error)
	Close()
}

// ToneHandle is a running tone playback.
type ToneHandle interface {
	Stop()
}

type Engine interface {
	ListDevices() (DeviceList, error)
	// EnableAEC binds the named devices ("" selects the default) and
	// starts echo-cancelled capture.
	EnableAEC(ctx context.Context, inputName, outputName string) (AECHandle, error)
	// StartTone plays a test tone toward the named output ("" selects the
	// default).
	StartTone(outputName string) (ToneHandle, error)
	Close()
}

// pickDevice selects by name, or the first entry (the default) when name is
// empty. Reports false when a named device is absent.
func pickDevice(devices []DeviceMeta, name string) (DeviceMeta, bool) {
	if name == "" {
		if len(devices) == 0 {
			return DeviceMeta{}, false
		}
		return devices[0], true
	}
	for _, d := range devices {
		if d.Name == name {
			return d, true
		}
	}
	return DeviceMeta{}, false
}
