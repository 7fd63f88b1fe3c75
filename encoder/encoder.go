// Package encoder turns captured audio into on-disk recordings. The
// container is picked from the target path: ".wav" streams RIFF/WAVE,
// anything else encodes FLAC.
package encoder

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoder is one container format's block encoder.
type Encoder interface {
	EncodeBlock(block []int16) error
	// Save finalizes the stream and persists it to the recorder's path.
	Save() error
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

// Recorder accumulates interleaved S16LE capture bytes, downmixes them to
// mono, and encodes full blocks as they fill.
type Recorder struct {
	mu         sync.Mutex
	enc        Encoder
	format     string
	path       string
	sampleRate int
	pending    []int16
	closed     bool
}

func NewRecorder(path string, sampleRate int) (*Recorder, error) {
	var (
		enc    Encoder
		format string
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		format = "wav"
		enc, err = NewWav(path, sampleRate)
	default:
		// Lossless by default, matching the highest-quality branch of the
		// format choice.
		format = "flac"
		enc, err = NewFlacFile(path, uint32(sampleRate))
	}
	if err != nil {
		return nil, err
	}
	return &Recorder{
		enc:        enc,
		format:     format,
		path:       path,
		sampleRate: sampleRate,
		pending:    make([]int16, 0, BlockSize),
	}, nil
}

func (r *Recorder) Format() string { return r.format }

func (r *Recorder) Path() string { return r.path }

// Write consumes one capture callback's worth of interleaved S16LE bytes.
// Safe to call from the audio callback; encode errors surface on Save.
func (r *Recorder) Write(data []byte, channels int) {
	if channels < 1 {
		channels = 1
	}
	frames := len(data) / 2 / channels
	if frames == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	for f := 0; f < frames; f++ {
		var sum int32
		for c := 0; c < channels; c++ {
			off := (f*channels + c) * 2
			sum += int32(int16(binary.LittleEndian.Uint16(data[off:])))
		}
		r.pending = append(r.pending, int16(sum/int32(channels)))
		if len(r.pending) == BlockSize {
			r.flushLocked()
		}
	}
}

func (r *Recorder) flushLocked() {
	start := time.Now()
	if err := r.enc.EncodeBlock(r.pending); err != nil {
		// A failed block is dropped; the stream stays decodable.
		r.pending = r.pending[:0]
		return
	}
	r.enc.AddEncodeTime(time.Since(start))
	r.pending = r.pending[:0]
}

// Save finalizes the stream and writes it to the recorder's path.
func (r *Recorder) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder already closed")
	}
	r.closed = true

	if len(r.pending) > 0 {
		start := time.Now()
		if err := r.enc.EncodeBlock(r.pending); err != nil {
			return fmt.Errorf("encoding final block: %w", err)
		}
		r.enc.AddEncodeTime(time.Since(start))
		r.pending = r.pending[:0]
	}
	return r.enc.Save()
}

// Duration is the recorded audio length so far.
func (r *Recorder) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sampleRate <= 0 {
		return 0
	}
	total := r.enc.TotalFrames() + uint64(len(r.pending))
	return time.Duration(total) * time.Second / time.Duration(r.sampleRate)
}
