package audio

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFakeCaptureDeliversChunks(t *testing.T) {
	pcm := make([]byte, fakeFrameSize*2*3)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	ctx := NewFakeContext(pcm, false)
	dev, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}

	var mu sync.Mutex
	var got []byte
	dev.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		if len(got) < len(pcm) {
			got = append(got, data...)
		}
		mu.Unlock()
	})

	if err := dev.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= len(pcm) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out, got %d of %d bytes", n, len(pcm))
		}
		time.Sleep(time.Millisecond)
	}
	dev.Stop()

	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(got[:len(pcm)], pcm) {
		t.Error("delivered PCM does not match source buffer")
	}
}

func TestFakeCaptureStopIdempotent(t *testing.T) {
	ctx := NewFakeContext(nil, false)
	dev, _ := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	fc := dev.(*FakeCapture)

	if err := dev.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	dev.Stop()
	dev.Stop()
	dev.Close()

	if n := fc.StopCount(); n != 1 {
		t.Errorf("StopCount = %d, want 1", n)
	}
}

func TestFakeCaptureDenied(t *testing.T) {
	ctx := NewFakeContext(nil, false)
	ctx.DenyAccess()
	dev, _ := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})

	err := dev.Start()
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Start error = %v, want ErrPermissionDenied", err)
	}
}
