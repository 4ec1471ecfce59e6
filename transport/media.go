package transport

import "strings"

// Payload is one audio sample headed for the analyzer. Format is the
// container name ("wav", "webm", ...); empty means WAV.
type Payload struct {
	Data   []byte
	Format string
}

// mediaType is the filename and MIME pair attached to the multipart form.
type mediaType struct {
	filename    string
	contentType string
	isWAV       bool
}

// normalizeMedia resolves a payload format to its wire framing. The set is
// deliberately closed: anything outside it is a precondition failure, never
// silently coerced.
func normalizeMedia(format string) (mediaType, *Error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "wav", "wave", "x-wav":
		return mediaType{filename: "sample.wav", contentType: "audio/wav", isWAV: true}, nil
	case "webm":
		return mediaType{filename: "sample.webm", contentType: "audio/webm"}, nil
	default:
		return mediaType{}, &Error{
			Kind:    KindUnsupportedFormat,
			Message: "unsupported audio format " + strings.TrimSpace(format),
		}
	}
}
