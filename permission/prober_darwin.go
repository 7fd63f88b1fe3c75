//go:build darwin

package permission

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int melodeusMicStatus() {
    return (int)[AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
}

void melodeusMicRequest() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

import (
	"context"
	"time"

	"melodeus/audio"
)

const (
	avStatusNotDetermined = 0
	avStatusRestricted    = 1
	avStatusDenied        = 2
	avStatusAuthorized    = 3
)

// avProber uses the AVFoundation authorization API so the gate can see the
// real OS-level consent state, including changes made in System Settings
// while the process runs.
type avProber struct {
	watchDone chan struct{}
}

func NewPlatformProber(audio.Context) Prober {
	return &avProber{}
}

func (p *avProber) Usable() bool {
	return int(C.melodeusMicStatus()) != avStatusRestricted
}

func (p *avProber) Probe(ctx context.Context) error {
	switch int(C.melodeusMicStatus()) {
	case avStatusAuthorized:
		return nil
	case avStatusDenied, avStatusRestricted:
		return audio.ErrNotAllowed
	}

	// Not determined: fire the system dialog and wait for the user.
	C.melodeusMicRequest()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			switch int(C.melodeusMicStatus()) {
			case avStatusAuthorized:
				return nil
			case avStatusDenied, avStatusRestricted:
				return audio.ErrNotAllowed
			}
		}
	}
}

func (p *avProber) Watch(fn func(State)) (func(), bool) {
	done := make(chan struct{})
	p.watchDone = done
	go func() {
		last := int(C.melodeusMicStatus())
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				status := int(C.melodeusMicStatus())
				if status == last {
					continue
				}
				last = status
				switch status {
				case avStatusAuthorized:
					fn(StateGranted)
				case avStatusDenied, avStatusRestricted:
					fn(StateDenied)
				default:
					fn(StatePrompt)
				}
			}
		}
	}()
	return func() { close(done) }, true
}
