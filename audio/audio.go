// Package audio abstracts platform audio capture behind a small
// Context/CaptureDevice pair so the recording pipeline can run against
// PulseAudio, miniaudio or a fake backend interchangeably.
package audio

import "errors"

// ErrPermissionDenied marks capture failures caused by the OS denying
// microphone access or by the absence of any capture device.
var ErrPermissionDenied = errors.New("microphone access denied")

// DataCallback receives one chunk of S16LE PCM as the device produces it.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}
