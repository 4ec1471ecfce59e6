// Package recorder owns one microphone capture at a time: it accumulates
// audio chunks, enforces the recording-time ceiling and hands the finished
// payload to exactly one downstream path.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vocap/audio"
	"vocap/encoder"
	"vocap/features"
	"vocap/transport"
	"vocap/wav"
)

// State is the session lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
	StateFinished
	StateError
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateFinished:
		return "finished"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

var (
	// ErrSessionUsed means Start was called on a session past Idle.
	ErrSessionUsed = errors.New("recording session already used")
	// ErrNotFinished means a delivery path was invoked before Stop.
	ErrNotFinished = errors.New("recording not finished")
	// ErrDelivered means the payload was already handed to a downstream
	// path; a session delivers exactly once.
	ErrDelivered = errors.New("recording already delivered")
)

type Config struct {
	SampleRate   int
	Channels     int
	MaxDuration  time.Duration
	TickInterval time.Duration

	// OnTick, when set, receives the elapsed whole seconds once per tick.
	OnTick func(elapsed int)
}

func (c *Config) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = encoder.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = encoder.Channels
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
}

// Sample is the finished payload of one session: concatenated S16LE PCM.
type Sample struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

func (s *Sample) Empty() bool { return s == nil || len(s.PCM) == 0 }

// Duration derives the recorded length from the sample count.
func (s *Sample) Duration() time.Duration {
	if s.Empty() {
		return 0
	}
	frames := len(s.PCM) / (2 * s.Channels)
	return time.Duration(frames) * time.Second / time.Duration(s.SampleRate)
}

// WAV frames the sample as a complete container.
func (s *Sample) WAV() []byte {
	return wav.WrapPCM(s.PCM, s.SampleRate, s.Channels)
}

// Session drives one recording from Start to a single delivery. The
// capture device is exclusively owned between Start and Stop and is
// halted on every exit path.
type Session struct {
	capture audio.CaptureDevice
	cfg     Config

	mu        sync.Mutex
	state     State
	chunks    [][]byte
	sample    *Sample
	finalized bool
	delivered bool

	done     chan struct{} // closed when the session reaches Finished
	tickStop chan struct{}
}

func New(capture audio.CaptureDevice, cfg Config) *Session {
	cfg.applyDefaults()
	return &Session{
		capture:  capture,
		cfg:      cfg,
		state:    StateIdle,
		done:     make(chan struct{}),
		tickStop: make(chan struct{}),
	}
}

// State reports the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches Finished, whether stopped by
// the caller or by the ceiling.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start requests the capture device and begins accumulating chunks and
// counting ticks. Denied or absent microphones leave the session in
// StateError holding no resources.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle || s.finalized {
		s.mu.Unlock()
		return ErrSessionUsed
	}
	s.mu.Unlock()

	s.capture.SetCallback(func(data []byte, _ uint32) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != StateRecording || len(data) == 0 {
			return
		}
		chunk := make([]byte, len(data))
		copy(chunk, data)
		s.chunks = append(s.chunks, chunk)
	})

	if err := s.capture.Start(); err != nil {
		s.capture.ClearCallback()
		s.mu.Lock()
		s.state = StateError
		s.mu.Unlock()
		if errors.Is(err, audio.ErrPermissionDenied) {
			return fmt.Errorf("starting capture: %w", err)
		}
		return fmt.Errorf("starting capture: %w: %v", audio.ErrPermissionDenied, err)
	}

	s.mu.Lock()
	s.state = StateRecording
	s.mu.Unlock()

	// The ceiling timer and the capture stream run independently; the
	// ceiling fires the same stop path a caller would.
	go func() {
		mon := newCeilingMonitor(s.cfg.MaxDuration, s.cfg.TickInterval)
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.tickStop:
				return
			case <-ticker.C:
				limit := mon.Tick()
				if s.cfg.OnTick != nil {
					s.cfg.OnTick(mon.Elapsed())
				}
				if limit {
					s.Stop()
					return
				}
			}
		}
	}()

	return nil
}

// Stop halts capture, releases the device, and finalizes the payload.
// Safe to call from any trigger any number of times; only the first call
// does work, so the ceiling racing a manual stop cannot double-release
// the device or double-finalize the sample. A caller that loses the race
// blocks until the winner has finalized, so every caller sees the sample.
func (s *Session) Stop() *Sample {
	s.mu.Lock()
	if s.finalized {
		stopping := s.state == StateStopping
		s.mu.Unlock()
		if stopping {
			<-s.done
		}
		s.mu.Lock()
		sample := s.sample
		s.mu.Unlock()
		return sample
	}
	s.finalized = true

	if s.state != StateRecording {
		// Stopped before a successful Start; nothing was acquired.
		s.mu.Unlock()
		close(s.tickStop)
		return nil
	}
	s.state = StateStopping
	s.mu.Unlock()

	close(s.tickStop)
	s.capture.ClearCallback()
	s.capture.Stop()

	s.mu.Lock()
	var total int
	for _, c := range s.chunks {
		total += len(c)
	}
	pcm := make([]byte, 0, total)
	for _, c := range s.chunks {
		pcm = append(pcm, c...)
	}
	s.chunks = nil
	s.sample = &Sample{PCM: pcm, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}
	s.state = StateFinished
	sample := s.sample
	s.mu.Unlock()

	close(s.done)
	return sample
}

// claimDelivery reserves the one delivery slot for the caller.
func (s *Session) claimDelivery() (*Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFinished {
		return nil, ErrNotFinished
	}
	if s.delivered {
		return nil, ErrDelivered
	}
	s.delivered = true
	return s.sample, nil
}

// SaveTo writes the payload to path; the extension picks the container
// (.wav or .flac). An empty recording is a no-op, not an error.
func (s *Session) SaveTo(path string) error {
	sample, err := s.claimDelivery()
	if err != nil {
		return err
	}
	if sample.Empty() {
		return nil
	}

	var enc encoder.Encoder
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		enc = encoder.NewWav(sample.SampleRate)
	case ".flac":
		enc, err = encoder.NewFlac(sample.SampleRate)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported save extension %q", ext)
	}

	data, err := encodeSample(enc, sample.PCM)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Analyze forwards the payload to the feature analyzer. An empty
// recording yields no vector and no error.
func (s *Session) Analyze(ctx context.Context, client *transport.Client) (*features.VoiceFeatures, error) {
	sample, err := s.claimDelivery()
	if err != nil {
		return nil, err
	}
	if sample.Empty() {
		return nil, nil
	}
	return client.Analyze(ctx, transport.Payload{Data: sample.WAV(), Format: "wav"})
}

// encodeSample feeds the payload through enc in encoder-native blocks.
func encodeSample(enc encoder.Encoder, pcm []byte) ([]byte, error) {
	block := make([]int16, 0, encoder.BlockSize)
	for i := 0; i+1 < len(pcm); i += 2 {
		block = append(block, int16(uint16(pcm[i])|uint16(pcm[i+1])<<8))
		if len(block) == encoder.BlockSize {
			if err := enc.EncodeBlock(block); err != nil {
				return nil, err
			}
			block = block[:0]
		}
	}
	if len(block) > 0 {
		if err := enc.EncodeBlock(block); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
