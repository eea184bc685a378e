package vad

import (
	"math"
	"time"

	"github.com/scribehq/scribe/internal/audio"
)

// Utterance is a finalized span of speech, ready for transcription. Mirrors
// spec.md §3's Utterance data model: f32 PCM in [-1,1], with the invariant
// len(PCM) == (EndedAt-StartedAt)*SampleRate/1000 ± one frame.
type Utterance struct {
	PCM        []float32
	SampleRate int
	StartedAt  time.Time
	EndedAt    time.Time
}

// DurationMS returns the utterance's wall-clock length.
func (u Utterance) DurationMS() int64 {
	return u.EndedAt.Sub(u.StartedAt).Milliseconds()
}

// Buffer accumulates VoicedFrame samples between SpeechStarted and
// SpeechEnded, enforces MinDurationMS, and normalizes the result to f32 PCM
// for the Transcriber. Owned exclusively by the Controller for the
// lifetime of one session (spec.md §3 "Ownership").
type Buffer struct {
	cfg       Config
	samples   []int16
	startedAt time.Time
}

// NewBuffer constructs an empty Buffer using cfg.MinDurationMS as its
// discard threshold.
func NewBuffer(cfg Config) *Buffer {
	return &Buffer{cfg: cfg}
}

// Start records the wall-clock moment speech began (called on
// SpeechStarted).
func (b *Buffer) Start(at time.Time) {
	b.startedAt = at
	b.samples = b.samples[:0]
}

// Append appends one frame of voiced PCM to the in-progress utterance.
func (b *Buffer) Append(samples []int16) {
	b.samples = append(b.samples, samples...)
}

// Len reports the number of samples accumulated so far.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// DurationMS reports the accumulated utterance duration given the
// configured sample rate.
func (b *Buffer) DurationMS() int {
	return len(b.samples) * 1000 / audio.SampleRate
}

// ErrTooShort is returned by Finish when the accumulated utterance is
// shorter than MinDurationMS, per spec.md §4.3.
var ErrTooShort = tooShortError{}

type tooShortError struct{}

func (tooShortError) Error() string { return "vad: utterance shorter than min_duration_ms" }

// Finish closes out the current utterance at `at`, normalizing i16 samples
// to f32 in [-1,1] and peak-checking them. Returns ErrTooShort (and no
// Utterance) if the accumulated duration is below MinDurationMS, per
// spec.md §4.3 ("UtteranceTooShort... without invoking transcription").
func (b *Buffer) Finish(at time.Time) (Utterance, error) {
	if b.DurationMS() < b.cfg.MinDurationMS {
		return Utterance{}, ErrTooShort
	}

	pcm := make([]float32, len(b.samples))
	var peak float32
	for i, s := range b.samples {
		f := float32(s) / 32768.0
		if f < 0 {
			if -f > peak {
				peak = -f
			}
		} else if f > peak {
			peak = f
		}
		pcm[i] = f
	}
	// Peak-check: if somehow clipping beyond [-1,1] (shouldn't happen with
	// int16 source data), clamp defensively.
	if peak > 1.0 {
		scale := float32(1.0 / peak)
		for i := range pcm {
			pcm[i] *= scale
		}
	}

	u := Utterance{
		PCM:        pcm,
		SampleRate: audio.SampleRate,
		StartedAt:  b.startedAt,
		EndedAt:    at,
	}
	b.samples = nil
	return u, nil
}

// RMS returns the root-mean-square energy of the currently accumulated
// samples, exposed for diagnostics/tests.
func (b *Buffer) RMS() float64 {
	if len(b.samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range b.samples {
		v := float64(s) / 32768.0
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(len(b.samples)))
}
