package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/airloom/showmix/pkg/audio/pcm"
	"github.com/airloom/showmix/pkg/audio/wav"
	"github.com/airloom/showmix/pkg/voice"
)

func wavBody(t *testing.T, d time.Duration) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := wav.Encode(&buf, pcm.Mono24K, pcm.Mono24K.Silence(d)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSynthesizeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/synthesize" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("auth = %s", got)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.VoiceID != "v1" || req.Text != "hello" {
			t.Errorf("req = %+v", req)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wavBody(t, 250*time.Millisecond))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	resp, err := c.Synthesize(context.Background(), &Request{
		Text:    "hello",
		VoiceID: "v1",
		ModelID: "multilingual-v2",
		Params:  voice.Params{Stability: 0.5},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Format != pcm.Mono24K {
		t.Errorf("format = %v", resp.Format)
	}
	if resp.Duration != 250*time.Millisecond {
		t.Errorf("duration = %v", resp.Duration)
	}
}

func TestSynthesizeRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{"code": 5000, "message": "overloaded"})
			return
		}
		w.Write(wavBody(t, 100*time.Millisecond))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithBackoffBase(time.Millisecond))
	if _, err := c.Synthesize(context.Background(), &Request{Text: "x", VoiceID: "v"}); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestSynthesizeTransientExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithBackoffBase(time.Millisecond))
	_, err := c.Synthesize(context.Background(), &Request{Text: "x", VoiceID: "v"})
	if err == nil {
		t.Fatal("expected error")
	}
	if Permanent(err) {
		t.Error("5xx should be transient")
	}
	// First attempt plus two retries.
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestSynthesizePermanentNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"code": CodeInvalidVoice, "message": "no such voice"})
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithBackoffBase(time.Millisecond))
	_, err := c.Synthesize(context.Background(), &Request{Text: "x", VoiceID: "bogus"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !Permanent(err) {
		t.Error("invalid voice should be permanent")
	}
	e, ok := AsError(err)
	if !ok || !e.IsInvalidVoice() {
		t.Errorf("err = %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", got)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       Error
		retryable bool
	}{
		{"rate limited http", Error{HTTPStatus: 429}, true},
		{"rate limited code", Error{Code: CodeRateLimited, HTTPStatus: 400}, true},
		{"server error", Error{HTTPStatus: 503}, true},
		{"quota", Error{Code: CodeQuotaExhausted, HTTPStatus: 402}, false},
		{"invalid voice", Error{Code: CodeInvalidVoice, HTTPStatus: 400}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Retryable(); got != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}
