package audio

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const fakeFrameSize = 1024 // frames per chunk, 16-bit mono

// FakeContext replays a fixed PCM buffer through the CaptureDevice
// interface. In realtime mode chunks arrive paced to the sample rate;
// otherwise the whole buffer is delivered as fast as the callback accepts
// it, followed by silence.
type FakeContext struct {
	pcm      []byte
	realtime bool
	denied   bool
}

func NewFakeContext(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

// NewFakeContextFromWAV loads the sample data of a WAV file (header
// stripped) as the replay buffer.
func NewFakeContextFromWAV(path string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	const headerSize = 44
	if len(data) > headerSize {
		data = data[headerSize:]
	}
	return &FakeContext{pcm: data, realtime: realtime}, nil
}

// DenyAccess makes every capture created from this context fail Start,
// simulating a microphone-permission refusal.
func (f *FakeContext) DenyAccess() { f.denied = true }

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{
		pcm:      f.pcm,
		realtime: f.realtime,
		denied:   f.denied,
		config:   config,
	}, nil
}

type FakeCapture struct {
	pcm      []byte
	realtime bool
	denied   bool
	config   CaptureConfig

	mu        sync.Mutex
	cb        DataCallback
	stopCh    chan struct{}
	feedDone  chan struct{}
	running   bool
	stopCount int
}

// StopCount reports how many times the device was actually halted.
// Tests use it to assert the device is released exactly once.
func (f *FakeCapture) StopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCount
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) loadCallback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/2))
	return end
}

func (f *FakeCapture) Start() error {
	if f.denied {
		return fmt.Errorf("%w: fake capture", ErrPermissionDenied)
	}

	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * 2
	interval := time.Millisecond
	if f.realtime && f.config.SampleRate > 0 {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(f.config.SampleRate)
	}

	go func() {
		defer close(f.feedDone)
		pos := 0
		silence := make([]byte, chunkBytes)
		for {
			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
			cb := f.loadCallback()
			if cb == nil {
				continue
			}
			if pos < len(f.pcm) {
				pos = f.feedChunk(cb, pos, chunkBytes)
			} else {
				cb(silence, fakeFrameSize)
			}
		}
	}()

	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.stopCount++
	close(f.stopCh)
	done := f.feedDone
	f.mu.Unlock()
	<-done
}

func (f *FakeCapture) Close() {
	f.Stop()
}
