// Package encoder provides streaming encoders for captured PCM blocks.
package encoder

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoder consumes int16 sample blocks and produces one encoded byte
// stream. Bytes is only meaningful after Close.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}
