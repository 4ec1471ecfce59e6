//go:build !linux

package audio

import (
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes a miniaudio context for the platform's default
// capture backend.
func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo: %w", err)
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo list devices: %w", err)
	}
	var devices []DeviceInfo
	for _, info := range infos {
		devices = append(devices, DeviceInfo{
			ID:   hex.EncodeToString(info.ID[:]),
			Name: info.Name(),
		})
	}
	return devices, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	var id *malgo.DeviceID
	if device != nil {
		infos, err := m.ctx.Devices(malgo.Capture)
		if err != nil {
			return nil, fmt.Errorf("malgo list devices: %w", err)
		}
		for i := range infos {
			if hex.EncodeToString(infos[i].ID[:]) == device.ID {
				did := malgo.DeviceID(infos[i].ID)
				id = &did
				break
			}
		}
		if id == nil {
			return nil, fmt.Errorf("capture device %q not found", device.Name)
		}
	}
	return &malgoCapture{ctx: m.ctx, deviceID: id, config: config}, nil
}

func (m *malgoContext) Close() {
	_ = m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	ctx      *malgo.AllocatedContext
	deviceID *malgo.DeviceID
	config   CaptureConfig
	callback atomic.Pointer[DataCallback]

	mu     sync.Mutex
	device *malgo.Device
}

func (c *malgoCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return nil
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = c.config.Channels
	cfg.SampleRate = c.config.SampleRate
	cfg.Alsa.NoMMap = 1
	if c.deviceID != nil {
		cfg.Capture.DeviceID = c.deviceID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, frameCount uint32) {
			cb := c.callback.Load()
			if cb == nil || len(in) == 0 {
				return
			}
			chunk := make([]byte, len(in))
			copy(chunk, in)
			(*cb)(chunk, frameCount)
		},
	}

	device, err := malgo.InitDevice(c.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("%w: malgo init device: %v", ErrPermissionDenied, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("%w: malgo start: %v", ErrPermissionDenied, err)
	}

	c.device = device
	return nil
}

func (c *malgoCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		c.device.Uninit() // stops and releases the device handle
		c.device = nil
	}
}

func (c *malgoCapture) Close() {
	c.Stop()
}

func (c *malgoCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *malgoCapture) ClearCallback() {
	c.callback.Store(nil)
}
