//go:build !darwin

package permission

import "melodeus/audio"

func NewPlatformProber(ctx audio.Context) Prober {
	return NewCaptureProber(ctx)
}
