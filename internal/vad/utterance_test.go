package vad

import (
	"errors"
	"testing"
	"time"

	"github.com/scribehq/scribe/internal/audio"
)

func TestBufferFinishRejectsTooShort(t *testing.T) {
	cfg := Config{MinDurationMS: 250}
	b := NewBuffer(cfg)

	start := time.Now()
	b.Start(start)
	// 100ms worth of samples at 16kHz, well under MinDurationMS.
	b.Append(make([]int16, audio.SampleRate/10))

	_, err := b.Finish(start.Add(100 * time.Millisecond))
	if !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}

func TestBufferFinishNormalizesSamples(t *testing.T) {
	cfg := Config{MinDurationMS: 10}
	b := NewBuffer(cfg)

	start := time.Now()
	b.Start(start)
	samples := make([]int16, audio.SampleRate/2) // 500ms
	for i := range samples {
		samples[i] = 16384 // half-scale positive
	}
	b.Append(samples)

	end := start.Add(500 * time.Millisecond)
	u, err := b.Finish(end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(u.PCM) != len(samples) {
		t.Fatalf("expected %d PCM samples, got %d", len(samples), len(u.PCM))
	}
	want := float32(16384) / 32768.0
	if u.PCM[0] != want {
		t.Fatalf("expected normalized sample %f, got %f", want, u.PCM[0])
	}
	if u.SampleRate != audio.SampleRate {
		t.Fatalf("expected sample rate %d, got %d", audio.SampleRate, u.SampleRate)
	}
	if u.DurationMS() != 500 {
		t.Fatalf("expected duration 500ms, got %dms", u.DurationMS())
	}
	if b.Len() != 0 {
		t.Fatalf("expected buffer to be cleared after Finish, got %d samples", b.Len())
	}
}

func TestBufferFinishClampsOverflow(t *testing.T) {
	cfg := Config{MinDurationMS: 0}
	b := NewBuffer(cfg)
	start := time.Now()
	b.Start(start)
	b.Append([]int16{32767, -32768})

	u, err := b.Finish(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range u.PCM {
		if s > 1.0 || s < -1.0 {
			t.Fatalf("sample out of [-1,1] range: %f", s)
		}
	}
}

func TestBufferRMSOfSilenceIsZero(t *testing.T) {
	b := NewBuffer(DefaultConfig())
	b.Start(time.Now())
	b.Append(make([]int16, 100))
	if b.RMS() != 0 {
		t.Fatalf("expected zero RMS for silence, got %f", b.RMS())
	}
}
