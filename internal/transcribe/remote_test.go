package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scribehq/scribe/internal/errs"
	"github.com/scribehq/scribe/internal/vad"
)

func testRequest() Request {
	return Request{
		Utterance: vad.Utterance{
			PCM:        []float32{0, 0.1, -0.1, 0.2},
			SampleRate: 16000,
		},
		Language: "en",
	}
}

func TestRemoteTranscribeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(struct {
			Text string `json:"text"`
		}{Text: "hello world"})
	}))
	defer server.Close()

	r := NewRemote(server.URL, "test-key", "whisper-1", 0)
	result, err := r.Transcribe(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello world" {
		t.Errorf("expected 'hello world', got %q", result.Text)
	}
	if r.Name() != "remote" {
		t.Errorf("expected name 'remote', got %q", r.Name())
	}
}

func TestRemoteTranscribeAuthFailedNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	r := NewRemote(server.URL, "bad-key", "whisper-1", 0)
	_, err := r.Transcribe(context.Background(), testRequest())
	if errs.KindOf(err) != errs.KindAuthFailed {
		t.Fatalf("expected AuthFailed, got %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected exactly 1 request (no retry on 4xx), got %d", hits)
	}
}

func TestRemoteTranscribeRetriesOn5xx(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(struct {
			Text string `json:"text"`
		}{Text: "recovered"})
	}))
	defer server.Close()

	r := NewRemote(server.URL, "test-key", "whisper-1", 0)
	result, err := r.Transcribe(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if result.Text != "recovered" {
		t.Errorf("expected 'recovered', got %q", result.Text)
	}
	if hits != 2 {
		t.Fatalf("expected exactly 2 requests (one retry), got %d", hits)
	}
}

func TestRemoteTranscribeCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRemote(server.URL, "test-key", "whisper-1", 0)
	_, err := r.Transcribe(ctx, testRequest())
	if errs.KindOf(err) != errs.KindCancelled {
		t.Fatalf("expected Cancelled, got %v", err)
	}
}
