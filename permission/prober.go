package permission

import (
	"context"

	"melodeus/audio"
)

const probeSampleRate = 16000

// CaptureProber triggers the consent prompt the portable way: open a capture
// stream on the default device and immediately release it. The stream is
// never read; its only purpose is to make the platform ask the user.
type CaptureProber struct {
	ctx audio.Context
}

func NewCaptureProber(ctx audio.Context) *CaptureProber {
	return &CaptureProber{ctx: ctx}
}

func (p *CaptureProber) Usable() bool {
	return p.ctx != nil
}

func (p *CaptureProber) Probe(ctx context.Context) error {
	capture, err := p.ctx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: probeSampleRate,
		Channels:   1,
	})
	if err != nil {
		return err
	}
	defer capture.Close()

	if err := capture.Start(); err != nil {
		return err
	}
	capture.Stop()
	return nil
}

func (p *CaptureProber) Watch(func(State)) (func(), bool) {
	// Capture backends report consent changes only at the next open.
	return nil, false
}
