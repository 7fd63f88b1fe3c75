// Package tone plays a continuous sine tone, used to exercise echo paths
// while monitoring.
package tone

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var disabled bool

// Disable turns playback into a no-op (headless and test runs).
func Disable() { disabled = true }

const (
	sampleRate  = 44100
	DefaultFreq = 440.0
	volume      = 0.4
)

var (
	otoCtx   *oto.Context
	initOnce sync.Once
	initErr  error
)

func initContext() {
	var ready chan struct{}
	otoCtx, ready, initErr = oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   50 * time.Millisecond,
	})
	if initErr != nil {
		return
	}
	<-ready
}

// sineReader streams an endless S16LE mono sine wave.
type sineReader struct {
	freq  float64
	phase float64
}

func (r *sineReader) Read(p []byte) (int, error) {
	n := len(p) / 2 * 2
	for i := 0; i < n; i += 2 {
		s := int16(math.Sin(2*math.Pi*r.freq*r.phase/sampleRate) * 32767 * volume)
		binary.LittleEndian.PutUint16(p[i:], uint16(s))
		r.phase++
	}
	return n, nil
}

type Player struct {
	player *oto.Player
	once   sync.Once
}

// Start begins continuous playback at freq on the system output device and
// returns a handle that stops it.
func Start(freq float64) (*Player, error) {
	if disabled {
		return &Player{}, nil
	}
	if freq <= 0 {
		freq = DefaultFreq
	}
	initOnce.Do(initContext)
	if initErr != nil {
		return nil, fmt.Errorf("tone init: %w", initErr)
	}
	p := otoCtx.NewPlayer(&sineReader{freq: freq})
	p.Play()
	return &Player{player: p}, nil
}

// Stop ends playback. Safe to call more than once.
func (p *Player) Stop() {
	p.once.Do(func() {
		if p.player != nil {
			p.player.Close()
		}
	})
}
