// Package wav encodes and validates 16-bit PCM WAV containers.
//
// The header layout is the fixed 44-byte RIFF/WAVE/fmt/data form; external
// readers depend on the exact byte offsets, so they are written explicitly
// rather than through a struct.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HeaderSize is the fixed container header length in bytes.
	HeaderSize = 44

	bytesPerSample = 2 // 16-bit PCM
	pcmFormatCode  = 1
)

// Buffer holds captured floating-point PCM, one slice per channel,
// samples in [-1.0, 1.0]. Immutable once built.
type Buffer struct {
	SampleRate int
	Data       [][]float32
}

// NumSamples returns the per-channel sample count.
func (b Buffer) NumSamples() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Encode converts a float buffer into a complete WAV container.
// Only channel 0 is encoded; mixdown of additional channels is out of scope.
//
// Quantization is asymmetric for bit-compatibility with existing consumers:
// negative samples scale by 0x8000, non-negative by 0x7FFF.
func Encode(buf Buffer) []byte {
	samples := []float32(nil)
	if len(buf.Data) > 0 {
		samples = buf.Data[0]
	}

	pcm := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		var q int16
		if s < 0 {
			q = int16(s * 0x8000)
		} else {
			q = int16(s * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(q))
	}

	return WrapPCM(pcm, buf.SampleRate, 1)
}

// WrapPCM frames already-quantized little-endian int16 PCM data with a
// WAV header. Used by the capture path, which produces int16 directly.
func WrapPCM(pcm []byte, sampleRate, channels int) []byte {
	dataSize := len(pcm)
	blockAlign := channels * bytesPerSample
	byteRate := sampleRate * blockAlign

	out := make([]byte, HeaderSize+dataSize)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(HeaderSize-8+dataSize))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], pcmFormatCode)
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))
	copy(out[HeaderSize:], pcm)
	return out
}

// Validate reports whether data is a well-formed linear-PCM WAV container.
// It checks length, the RIFF/WAVE/fmt tags and the PCM format code, in that
// order. Well-formed-but-wrong content never panics; it just returns false.
func Validate(data []byte) bool {
	if len(data) < HeaderSize {
		return false
	}
	if string(data[0:4]) != "RIFF" {
		return false
	}
	if string(data[8:12]) != "WAVE" {
		return false
	}
	if string(data[12:16]) != "fmt " {
		return false
	}
	return binary.LittleEndian.Uint16(data[20:22]) == pcmFormatCode
}

// ValidateReader validates the header read from r. Read errors are treated
// as a validation failure (fail closed), never surfaced.
func ValidateReader(r io.Reader) bool {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return false
	}
	return Validate(header)
}

// Info describes the header of a WAV container.
type Info struct {
	SampleRate int
	Channels   int
	DataSize   int
	NumSamples int
	Duration   float64 // seconds
}

// ParseInfo decodes header metadata from a validated container.
func ParseInfo(data []byte) (Info, error) {
	if !Validate(data) {
		return Info{}, fmt.Errorf("not a valid PCM WAV container")
	}

	channels := int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	if channels <= 0 || sampleRate <= 0 {
		return Info{}, fmt.Errorf("invalid WAV header: channels=%d rate=%d", channels, sampleRate)
	}

	numSamples := dataSize / (bytesPerSample * channels)
	return Info{
		SampleRate: sampleRate,
		Channels:   channels,
		DataSize:   dataSize,
		NumSamples: numSamples,
		Duration:   float64(numSamples) / float64(sampleRate),
	}, nil
}
