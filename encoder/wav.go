package encoder

import (
	"bytes"
	"encoding/binary"
	"sync"

	"vocap/wav"
)

// WavEncoder accumulates PCM blocks and frames them as a WAV container.
type WavEncoder struct {
	sampleRate  int
	buf         bytes.Buffer
	totalFrames uint64
	mu          sync.Mutex
}

func NewWav(sampleRate int) *WavEncoder {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	return &WavEncoder{sampleRate: sampleRate}
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	data := make([]byte, len(block)*2)
	for i, s := range block {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	e.buf.Write(data)
	e.totalFrames += uint64(len(block))
	return nil
}

// Close is a no-op; the container is assembled lazily in Bytes.
func (e *WavEncoder) Close() error { return nil }

func (e *WavEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return wav.WrapPCM(e.buf.Bytes(), e.sampleRate, Channels)
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}
