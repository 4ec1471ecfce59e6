package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vocap/wav"
)

func validWAV(t *testing.T) []byte {
	t.Helper()
	return wav.WrapPCM(make([]byte, 3200), 16000, 1)
}

// newTestClient points a client at a test server with a fast retry pause
// and returns a counter of the pauses taken.
func newTestClient(url string) (*Client, *atomic.Int32) {
	c := New(Config{BaseURL: url, APIKey: "test-key"})
	pauses := &atomic.Int32{}
	c.sleep = func(d time.Duration) {
		if d != DefaultRetryPause {
			panic("unexpected pause duration")
		}
		pauses.Add(1)
	}
	return c, pauses
}

const analyzerBody = `{"mdvpFo":150.2,"mdvpFhi":197.3,"mdvpFlo":116.8,"mdvpJitter":0.004,` +
	`"mdvpShimmer":0.037,"nhr":0.022,"hnr":21.6,"rpde":0.498,"dfa":0.718,` +
	`"spread1":-6.2,"spread2":0.226,"d2":2.381,"ppe":0.206}`

func TestAnalyzeSuccess(t *testing.T) {
	var gotKey, gotPath, gotFilename, gotContentType string
	var gotLen int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			return // connection warm-up
		}
		gotKey = r.Header.Get("X-API-KEY")
		gotPath = r.URL.Path
		file, header, err := r.FormFile("audio_file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			http.Error(w, "no file", http.StatusUnprocessableEntity)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotLen = len(data)
		gotFilename = header.Filename
		gotContentType = header.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, analyzerBody)
	}))
	defer srv.Close()

	c, pauses := newTestClient(srv.URL)
	payload := validWAV(t)
	v, err := c.Analyze(context.Background(), Payload{Data: payload})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if gotPath != "/api/v1/analyze_voice" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("X-API-KEY = %q", gotKey)
	}
	if gotFilename != "sample.wav" || gotContentType != "audio/wav" {
		t.Errorf("part = %q/%q, want sample.wav/audio/wav", gotFilename, gotContentType)
	}
	if gotLen != len(payload) {
		t.Errorf("uploaded %d bytes, want %d", gotLen, len(payload))
	}
	if v.MDVPFo != 150.2 || v.MDVPJitter != 0.004 {
		t.Errorf("MDVP_Fo/MDVP_Jitter = %v/%v", v.MDVPFo, v.MDVPJitter)
	}
	if v.MDVPJitterAbs != 0 || v.ShimmerAPQ5 != 0 {
		t.Error("locally-known fields absent remotely must default to 0")
	}
	if pauses.Load() != 0 {
		t.Errorf("pauses = %d, want 0", pauses.Load())
	}
}

func TestAnalyzeMetricsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			return // connection warm-up
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, analyzerBody)
	}))
	defer srv.Close()

	var gotAttempt int
	var gotMetrics *NetworkMetrics
	c := New(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Metrics: func(attempt int, m *NetworkMetrics) {
			gotAttempt = attempt
			gotMetrics = m
		},
	})
	if _, err := c.Analyze(context.Background(), Payload{Data: validWAV(t)}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if gotMetrics == nil {
		t.Fatal("metrics hook never fired")
	}
	if gotAttempt != 1 {
		t.Errorf("attempt = %d, want 1", gotAttempt)
	}
	if gotMetrics.ResponseSize != len(analyzerBody) {
		t.Errorf("ResponseSize = %d, want %d", gotMetrics.ResponseSize, len(analyzerBody))
	}
	if gotMetrics.TLSProto != "" {
		t.Errorf("TLSProto = %q, want empty over plain HTTP", gotMetrics.TLSProto)
	}
	if gotMetrics.Total <= 0 {
		t.Error("Total phase timing not recorded")
	}
}

func TestAnalyzeRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			return // connection warm-up
		}
		if calls.Add(1) <= 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, analyzerBody)
	}))
	defer srv.Close()

	c, pauses := newTestClient(srv.URL)
	v, err := c.Analyze(context.Background(), Payload{Data: validWAV(t)})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if v.HNR != 21.6 {
		t.Errorf("HNR = %v, want 21.6", v.HNR)
	}
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", calls.Load())
	}
	if pauses.Load() != 2 {
		t.Errorf("pauses = %d, want exactly 2", pauses.Load())
	}
}

func TestAnalyzeExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			return // connection warm-up
		}
		calls.Add(1)
		http.Error(w, `{"detail":"model crashed"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, pauses := newTestClient(srv.URL)
	_, err := c.Analyze(context.Background(), Payload{Data: validWAV(t)})

	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("error type = %T", err)
	}
	if terr.Kind != KindRemoteProcessingError {
		t.Errorf("Kind = %v, want RemoteProcessingError", terr.Kind)
	}
	if terr.Message != "model crashed" {
		t.Errorf("Message = %q, want last error surfaced", terr.Message)
	}
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", calls.Load())
	}
	if pauses.Load() != 2 {
		t.Errorf("pauses = %d, want 2", pauses.Load())
	}
}

func TestAnalyze422DetailVerbatimNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			return // connection warm-up
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"detail":"bad sample rate"}`)
	}))
	defer srv.Close()

	c, pauses := newTestClient(srv.URL)
	_, err := c.Analyze(context.Background(), Payload{Data: validWAV(t)})

	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("error type = %T", err)
	}
	if terr.Kind != KindUnprocessableContent {
		t.Errorf("Kind = %v, want UnprocessableContent", terr.Kind)
	}
	if !strings.Contains(err.Error(), "bad sample rate") {
		t.Errorf("error %q does not carry the remote detail verbatim", err)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts = %d, want 1 (4xx is terminal)", calls.Load())
	}
	if pauses.Load() != 0 {
		t.Errorf("pauses = %d, want 0", pauses.Load())
	}
}

func TestAnalyzeStatusTaxonomy(t *testing.T) {
	for _, tt := range []struct {
		status int
		want   Kind
	}{
		{http.StatusBadRequest, KindInvalidRequest},
		{http.StatusRequestEntityTooLarge, KindPayloadTooLarge},
		{http.StatusUnsupportedMediaType, KindUnsupportedMediaType},
		{http.StatusUnprocessableEntity, KindUnprocessableContent},
		{http.StatusInternalServerError, KindRemoteProcessingError},
		{http.StatusNotFound, KindNetworkError},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				return
			}
			http.Error(w, "nope", tt.status)
		}))
		c, _ := newTestClient(srv.URL)
		_, err := c.Analyze(context.Background(), Payload{Data: validWAV(t)})
		srv.Close()

		var terr *Error
		if !errors.As(err, &terr) {
			t.Fatalf("status %d: error type = %T", tt.status, err)
		}
		if terr.Kind != tt.want {
			t.Errorf("status %d: Kind = %v, want %v", tt.status, terr.Kind, tt.want)
		}
		if terr.Status != tt.status {
			t.Errorf("status %d: Status = %d", tt.status, terr.Status)
		}
	}
}

func TestAnalyzeStructuredDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"detail":{"loc":["audio_file"],"msg":"field required"}}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	_, err := c.Analyze(context.Background(), Payload{Data: validWAV(t)})
	if !strings.Contains(err.Error(), "field required") {
		t.Errorf("structured detail lost: %q", err)
	}
}

func TestAnalyzePreconditions(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			return // connection warm-up
		}
		calls.Add(1)
	}))
	defer srv.Close()
	c, _ := newTestClient(srv.URL)

	t.Run("unsupported format", func(t *testing.T) {
		_, err := c.Analyze(context.Background(), Payload{Data: validWAV(t), Format: "ogg"})
		var terr *Error
		if !errors.As(err, &terr) || terr.Kind != KindUnsupportedFormat {
			t.Errorf("err = %v, want UnsupportedFormat", err)
		}
	})
	t.Run("empty payload", func(t *testing.T) {
		_, err := c.Analyze(context.Background(), Payload{})
		var terr *Error
		if !errors.As(err, &terr) || terr.Kind != KindValidationFailure {
			t.Errorf("err = %v, want ValidationFailure", err)
		}
	})
	t.Run("malformed wav", func(t *testing.T) {
		_, err := c.Analyze(context.Background(), Payload{Data: []byte("not a wav at all, but long enough to pass the length check............")})
		var terr *Error
		if !errors.As(err, &terr) || terr.Kind != KindValidationFailure {
			t.Errorf("err = %v, want ValidationFailure", err)
		}
	})

	if calls.Load() != 0 {
		t.Errorf("server calls = %d, preconditions must not reach the network", calls.Load())
	}
}

func TestAnalyzeWebMSkipsWAVGate(t *testing.T) {
	var gotFilename, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			return
		}
		_, header, err := r.FormFile("audio_file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
		} else {
			gotFilename = header.Filename
			gotContentType = header.Header.Get("Content-Type")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, analyzerBody)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	// Opaque compressed bytes; no WAV validation applies.
	_, err := c.Analyze(context.Background(), Payload{Data: []byte{0x1a, 0x45, 0xdf, 0xa3, 1, 2, 3}, Format: "webm"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if gotFilename != "sample.webm" || gotContentType != "audio/webm" {
		t.Errorf("part = %q/%q, want sample.webm/audio/webm", gotFilename, gotContentType)
	}
}

func TestAnalyzeCanceledBetweenAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			return // connection warm-up
		}
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(Config{BaseURL: srv.URL, APIKey: "k"})
	c.sleep = func(time.Duration) { cancel() } // cancel during the pause

	_, err := c.Analyze(ctx, Payload{Data: validWAV(t)})
	var terr *Error
	if !errors.As(err, &terr) || terr.Kind != KindNetworkError {
		t.Fatalf("err = %v, want NetworkError", err)
	}
	if !strings.Contains(terr.Message, "canceled") {
		t.Errorf("Message = %q, want cancellation context", terr.Message)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts after cancel = %d, want 1", calls.Load())
	}
}

func TestNormalizeMediaAliases(t *testing.T) {
	for _, format := range []string{"", "wav", "WAVE", "x-wav", " wav "} {
		media, err := normalizeMedia(format)
		if err != nil {
			t.Errorf("format %q rejected: %v", format, err)
			continue
		}
		if !media.isWAV || media.contentType != "audio/wav" {
			t.Errorf("format %q → %+v", format, media)
		}
	}
	if _, err := normalizeMedia("mp3"); err == nil {
		t.Error("mp3 must be rejected, not coerced")
	}
}
