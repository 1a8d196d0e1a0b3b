// Package tts is the HTTP client for the external speech synthesis
// provider. The provider is opaque: only the request/response contract
// matters here. Transient failures are retried with exponential backoff;
// permanent failures surface immediately.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/airloom/showmix/pkg/audio/pcm"
	"github.com/airloom/showmix/pkg/audio/wav"
	"github.com/airloom/showmix/pkg/voice"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt
	// for transient failures.
	DefaultMaxRetries = 2

	// DefaultCallTimeout bounds a single synthesis call.
	DefaultCallTimeout = 30 * time.Second

	defaultBaseURL = "https://api.voiceforge.example/v1"
)

// Request is one synthesis call.
type Request struct {
	Text    string       `json:"text"`
	VoiceID string       `json:"voice_id"`
	ModelID string       `json:"model_id"`
	Emotion string       `json:"emotion,omitempty"`
	Params  voice.Params `json:"voice_settings"`
}

// Response is the synthesized clip.
type Response struct {
	// Audio is raw PCM data in Format.
	Audio []byte

	// Format is the clip's PCM format.
	Format pcm.Format

	// Duration is the clip's play time.
	Duration time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMaxRetries overrides the transient retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoffBase overrides the first backoff delay (tests shrink it).
func WithBackoffBase(d time.Duration) Option {
	return func(c *Client) { c.backoffBase = d }
}

// Client talks to the synthesis provider. Safe for concurrent use.
type Client struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	maxRetries  int
	backoffBase time.Duration
	log         *slog.Logger
}

// NewClient creates a provider client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: DefaultCallTimeout},
		baseURL:     defaultBaseURL,
		apiKey:      apiKey,
		maxRetries:  DefaultMaxRetries,
		backoffBase: time.Second,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize converts text to speech. Transient provider failures are
// retried up to the retry budget with exponential backoff (base 1s,
// factor 2); permanent failures return immediately.
func (c *Client) Synthesize(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase << uint(attempt-1)
			c.log.Debug("tts: retrying synthesis",
				"attempt", attempt, "backoff", backoff, "voice", req.VoiceID)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.doSynthesize(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if apiErr, ok := AsError(err); ok && !apiErr.Retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
		// Network errors and transient API errors fall through to retry.
	}
	return nil, lastErr
}

// doSynthesize performs a single provider call. A 200 response carries the
// clip as a WAV body; anything else carries a JSON error payload.
func (c *Client) doSynthesize(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tts: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	format, audio, err := wav.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: decode clip: %w", err)
	}
	return &Response{
		Audio:    audio,
		Format:   format,
		Duration: format.Duration(len(audio)),
	}, nil
}

// parseError reads a provider error payload.
func parseError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("tts: read error response: %w", err)
	}
	var e Error
	if jsonErr := json.Unmarshal(body, &e); jsonErr == nil && (e.Code != 0 || e.Msg != "") {
		e.HTTPStatus = resp.StatusCode
		return &e
	}
	return &Error{
		Code:       resp.StatusCode,
		Msg:        string(bytes.TrimSpace(body)),
		HTTPStatus: resp.StatusCode,
	}
}
