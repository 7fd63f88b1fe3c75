package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"melodeus/audio"
	"melodeus/tone"
)

// Canceller consumes one frame of captured samples plus the output
// reference and returns the echo-cancelled residual. Implementations are
// opaque to this package.
type Canceller interface {
	Process(captured, reference []float32) []float32
}

// Passthrough is the null canceller: the residual is the captured signal
// unchanged.
type Passthrough struct{}

func (Passthrough) Process(captured, _ []float32) []float32 { return captured }

// Native adapts the platform audio backends to the engine contract.
type Native struct {
	audioCtx  audio.Context
	canceller Canceller
}

func NewNative(ctx audio.Context, c Canceller) *Native {
	if c == nil {
		c = Passthrough{}
	}
	return &Native{audioCtx: ctx, canceller: c}
}

func (n *Native) ListDevices() (DeviceList, error) {
	inputs, err := n.audioCtx.Devices(audio.Input)
	if err != nil {
		return DeviceList{}, fmt.Errorf("listing inputs: %w", err)
	}
	outputs, err := n.audioCtx.Devices(audio.Output)
	if err != nil {
		return DeviceList{}, fmt.Errorf("listing outputs: %w", err)
	}

	list := DeviceList{
		Inputs:  toMeta(inputs, 1),
		Outputs: toMeta(outputs, 2),
	}
	// The default is the first enumerated entry.
	if len(list.Inputs) > 0 {
		list.DefaultInput = list.Inputs[0].Name
	}
	if len(list.Outputs) > 0 {
		list.DefaultOutput = list.Outputs[0].Name
	}
	return list, nil
}

func toMeta(devices []audio.DeviceInfo, fallbackChannels int) []DeviceMeta {
	out := make([]DeviceMeta, len(devices))
	for i, d := range devices {
		channels := d.Channels
		if channels == 0 {
			channels = fallbackChannels
		}
		out[i] = DeviceMeta{Name: d.Name, Channels: channels}
	}
	return out
}

func (n *Native) EnableAEC(ctx context.Context, inputName, outputName string) (AECHandle, error) {
	list, err := n.ListDevices()
	if err != nil {
		return nil, err
	}
	inputMeta, ok := pickDevice(list.Inputs, inputName)
	if !ok {
		return nil, ErrNoInputDevice
	}
	outputMeta, ok := pickDevice(list.Outputs, outputName)
	if !ok {
		return nil, ErrNoOutputDevice
	}

	var devPtr *audio.DeviceInfo
	inputs, err := n.audioCtx.Devices(audio.Input)
	if err == nil {
		for i := range inputs {
			if inputs[i].Name == inputMeta.Name {
				devPtr = &inputs[i]
				break
			}
		}
	}

	capture, err := n.audioCtx.NewCapture(devPtr, audio.CaptureConfig{
		SampleRate: TargetSampleRate,
		Channels:   uint32(inputMeta.Channels),
	})
	if err != nil {
		return nil, fmt.Errorf("opening engine capture: %w", err)
	}
	if err := capture.Start(); err != nil {
		capture.Close()
		return nil, fmt.Errorf("starting engine capture: %w", err)
	}

	h := &nativeAEC{
		capture:   capture,
		canceller: n.canceller,
		input:     inputMeta,
		output:    outputMeta,
		buf:       newFrameRing(FrameSize * inputMeta.Channels),
	}
	capture.SetCallback(h.push)
	return h, nil
}

func (n *Native) StartTone(string) (ToneHandle, error) {
	// The playback backend routes to the system output; per-device
	// routing is not exposed portably.
	return tone.Start(tone.DefaultFreq)
}

func (n *Native) Close() {
	n.audioCtx.Close()
}

type nativeAEC struct {
	capture   audio.CaptureDevice
	canceller Canceller
	input     DeviceMeta
	output    DeviceMeta
	buf       *frameRing

	mu     sync.Mutex
	closed bool
}

func (h *nativeAEC) push(data []byte, _ uint32) {
	n := len(data) / 2
	if n == 0 {
		return
	}
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32767.0
	}
	h.buf.write(samples)
}

func (h *nativeAEC) Update(context.Context) (Frame, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return Frame{}, ErrClosed
	}

	inputs := h.buf.snapshot()
	// No portable output loopback: the reference the canceller sees is
	// silence of the output's frame shape.
	outputs := make([]float32, FrameSize*h.output.Channels)

	captured := downmix(inputs, h.input.Channels)
	reference := downmix(outputs, h.output.Channels)
	residual := h.canceller.Process(captured, reference)

	return Frame{
		Inputs:         inputs,
		Outputs:        outputs,
		AEC:            residual,
		InputChannels:  h.input.Channels,
		OutputChannels: h.output.Channels,
		InputDevices:   []DeviceMeta{h.input},
		OutputDevices:  []DeviceMeta{h.output},
	}, nil
}

func (h *nativeAEC) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()
	h.capture.ClearCallback()
	h.capture.Stop()
	h.capture.Close()
}

// downmix averages interleaved channels into mono.
func downmix(buf []float32, channels int) []float32 {
	if channels <= 0 {
		return nil
	}
	frames := len(buf) / channels
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += buf[f*channels+c]
		}
		out[f] = sum / float32(channels)
	}
	return out
}

// frameRing keeps the most recent capture samples, zero-filled until full.
type frameRing struct {
	mu   sync.Mutex
	data []float32
	pos  int
	full bool
}

func newFrameRing(n int) *frameRing {
	if n < 1 {
		n = 1
	}
	return &frameRing{data: make([]float32, n)}
}

func (r *frameRing) write(samples []float32) {
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

func (r *frameRing) snapshot() []float32 {
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
