package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind classifies an upload failure for the caller.
type Kind int

const (
	// KindNetworkError covers connection failures, timeouts and any HTTP
	// status without a more specific classification.
	KindNetworkError Kind = iota
	KindInvalidRequest
	KindPayloadTooLarge
	KindUnsupportedMediaType
	KindUnprocessableContent
	KindRemoteProcessingError
	// KindUnsupportedFormat is a client-side precondition: the payload
	// format is outside the supported set. Never retried.
	KindUnsupportedFormat
	// KindValidationFailure is a client-side precondition: the payload is
	// missing or not a well-formed WAV container. Never retried.
	KindValidationFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid request"
	case KindPayloadTooLarge:
		return "payload too large"
	case KindUnsupportedMediaType:
		return "unsupported media type"
	case KindUnprocessableContent:
		return "unprocessable content"
	case KindRemoteProcessingError:
		return "remote processing error"
	case KindUnsupportedFormat:
		return "unsupported format"
	case KindValidationFailure:
		return "validation failure"
	default:
		return "network error"
	}
}

// Error is the transport failure surfaced to callers. Status is the HTTP
// status when one was received, 0 otherwise.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// retryable reports whether another attempt may succeed. Only transient
// conditions qualify: no response at all, or a server-side 5xx. Remote 4xx
// and client-side preconditions are terminal.
func (e *Error) retryable() bool {
	switch e.Kind {
	case KindUnsupportedFormat, KindValidationFailure:
		return false
	case KindRemoteProcessingError:
		return e.Status >= http.StatusInternalServerError
	case KindNetworkError:
		return e.Status == 0 || e.Status >= http.StatusInternalServerError
	default:
		return false
	}
}

// classifyStatus maps a non-2xx response to the error taxonomy. The remote
// body's "detail" field, when present, becomes the message verbatim.
func classifyStatus(status int, body []byte) *Error {
	kind := KindNetworkError
	switch {
	case status == http.StatusBadRequest:
		kind = KindInvalidRequest
	case status == http.StatusRequestEntityTooLarge:
		kind = KindPayloadTooLarge
	case status == http.StatusUnsupportedMediaType:
		kind = KindUnsupportedMediaType
	case status == http.StatusUnprocessableEntity:
		kind = KindUnprocessableContent
	case status >= http.StatusInternalServerError:
		kind = KindRemoteProcessingError
	}
	return &Error{Kind: kind, Status: status, Message: detailMessage(status, body)}
}

func detailMessage(status int, body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			return s
		}
		return string(payload.Detail) // structured detail, compact JSON verbatim
	}
	return fmt.Sprintf("http %d", status)
}
