// Package monitor implements the live waveform pipeline: device name
// resolution, capture session lifecycle, demultiplexing of interleaved
// multi-device buffers into per-device mono traces, and the cooperative
// render loop that paints them.
package monitor

// DeviceChannels names a logical device and the number of consecutive
// channels it occupies in an interleaved buffer.
type DeviceChannels struct {
	Name     string
	Channels int
}

// DeviceTrace is one device's downmixed mono samples for a single frame of
// rendering. Consumed once per tick, never retained.
type DeviceTrace struct {
	Name    string
	Samples []float32
}

// Painter renders a set of traces. Implementations must not retain the
// slices past the call.
type Painter interface {
	Paint(traces []DeviceTrace)
}
