package audio

import (
	"errors"
	"strings"
)

var (
	// ErrNotAllowed means the platform refused capture access (user consent
	// missing or revoked). Callers treat it differently from plain open
	// failures: it flips the permission state and is never retried
	// automatically.
	ErrNotAllowed = errors.New("audio: capture access not allowed")

	// ErrBackendUnavailable means the audio backend itself could not be
	// reached (no sound server, sandboxed process, headless host).
	ErrBackendUnavailable = errors.New("audio: backend unavailable")
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DeviceKind int

const (
	Input DeviceKind = iota
	Output
)

func (k DeviceKind) String() string {
	if k == Output {
		return "output"
	}
	return "input"
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID       string // opaque platform-specific identifier
	Name     string
	Channels int // 0 when the backend does not report it
	Kind     DeviceKind
}

type Context interface {
	// Devices enumerates devices of the given kind. Before the platform
	// grants capture access some backends return generic, unlabeled
	// entries; callers re-enumerate after a grant.
	Devices(kind DeviceKind) ([]DeviceInfo, error)
	// NewCapture opens a capture stream. device == nil means the system
	// default input.
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}
