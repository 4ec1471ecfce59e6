// Package transport delivers recorded audio payloads to the remote voice
// feature analyzer and normalizes its responses and failures.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"vocap/features"
	"vocap/wav"
)

const (
	analyzePath  = "/api/v1/analyze_voice"
	apiKeyHeader = "X-API-KEY"
	formField    = "audio_file"

	DefaultTimeout    = 30 * time.Second
	DefaultRetryPause = time.Second
	DefaultAttempts   = 3
)

// Config carries everything the client needs explicitly; the client never
// reads ambient configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration // per-attempt deadline
	RetryPause time.Duration // fixed pause between attempts
	Attempts   int           // total attempts, including the first

	// Metrics, when set, receives per-attempt network phase timings.
	Metrics func(attempt int, m *NetworkMetrics)
}

// Client uploads one audio payload per call and returns the canonical
// feature vector. Safe for concurrent use.
type Client struct {
	cfg      Config
	client   *TracedClient
	sleep    func(time.Duration) // overridable in tests
	warmOnce sync.Once
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryPause <= 0 {
		cfg.RetryPause = DefaultRetryPause
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		client: NewTracedClient(),
		sleep:  time.Sleep,
	}
}

// Analyze ships the payload to the analyzer. Client-side preconditions
// (empty payload, unknown format, malformed WAV) fail immediately without
// touching the network. Transient failures are retried up to the attempt
// budget with a fixed pause in between; remote 4xx responses are terminal.
// On failure the most recent error is returned — never a fabricated vector.
func (c *Client) Analyze(ctx context.Context, p Payload) (*features.VoiceFeatures, error) {
	if len(p.Data) == 0 {
		return nil, &Error{Kind: KindValidationFailure, Message: "empty audio payload"}
	}
	media, perr := normalizeMedia(p.Format)
	if perr != nil {
		return nil, perr
	}
	if media.isWAV && !wav.Validate(p.Data) {
		return nil, &Error{Kind: KindValidationFailure, Message: "malformed WAV container"}
	}

	body, contentType, err := multipartBody(media, p.Data)
	if err != nil {
		return nil, fmt.Errorf("framing payload: %w", err)
	}

	c.warmOnce.Do(func() { go c.client.Warm(c.cfg.BaseURL) })

	var lastErr *Error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Kind: KindNetworkError, Message: "upload canceled: " + err.Error()}
		}

		v, aerr := c.attempt(ctx, attempt, body, contentType)
		if aerr == nil {
			return v, nil
		}
		lastErr = aerr

		if !aerr.retryable() || attempt >= c.cfg.Attempts {
			return nil, lastErr
		}
		c.sleep(c.cfg.RetryPause)
	}
}

func (c *Client) attempt(ctx context.Context, attempt int, body []byte, contentType string) (*features.VoiceFeatures, *Error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, c.cfg.BaseURL+analyzePath, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindNetworkError, Message: err.Error()}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetworkError, Message: err.Error()}
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics(attempt, resp.Metrics)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, resp.Body)
	}

	var remote features.Remote
	if err := json.Unmarshal(resp.Body, &remote); err != nil {
		// A 200 with an undecodable body is not worth another attempt.
		return nil, &Error{
			Kind:    KindRemoteProcessingError,
			Status:  resp.StatusCode,
			Message: "analyzer response parse error: " + err.Error(),
		}
	}
	v := remote.Canonical()
	return &v, nil
}

// Health checks whether the analyzer endpoint is reachable and accepts the
// configured API key. Single attempt, no retries.
func (c *Client) Health(ctx context.Context) error {
	actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, c.cfg.BaseURL+"/api/v1/health", nil)
	if err != nil {
		return &Error{Kind: KindNetworkError, Message: err.Error()}
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Kind: KindNetworkError, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, resp.Body)
	}
	return nil
}

// multipartBody frames the payload once; the same bytes are reused across
// attempts.
func multipartBody(media mediaType, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, formField, media.filename))
	header.Set("Content-Type", media.contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
