package audio

import (
	"errors"
	"strings"
)

// ErrNoMonitorSource is returned when system audio is requested but the
// platform exposes no loopback or monitor source.
var ErrNoMonitorSource = errors.New("no system audio source available")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether it is a headset. Headset
// microphones drop to narrowband codecs and transcribe noticeably worse.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives interleaved little-endian PCM16 frames. data is only
// valid for the duration of the call.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID        string // opaque platform-specific identifier
	Name      string
	IsDefault bool
	IsMonitor bool // captures what the machine plays rather than a microphone
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	// NewCapture opens device, or the platform default input when nil.
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
