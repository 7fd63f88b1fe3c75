package encoder

import (
	"fmt"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavEncoder streams mono blocks into a RIFF/WAVE file as they arrive. The
// chunk sizes in the header are rewritten when the stream is finalized, so
// the file is only valid after Save.
type WavEncoder struct {
	mu          sync.Mutex
	f           *os.File
	enc         *wav.Encoder
	totalFrames uint64
	encodeTime  time.Duration
}

func NewWav(path string, sampleRate int) (*WavEncoder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating wav file: %w", err)
	}
	return &WavEncoder{
		f:   f,
		enc: wav.NewEncoder(f, sampleRate, BitsPerSample, Channels, 1),
	}, nil
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			SampleRate:  e.enc.SampleRate,
			NumChannels: Channels,
		},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav block: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Save() error {
	if err := e.enc.Close(); err != nil {
		e.f.Close()
		return fmt.Errorf("finalizing wav stream: %w", err)
	}
	return e.f.Close()
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *WavEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *WavEncoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}
