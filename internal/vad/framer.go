package vad

import (
	"math"
	"sync"

	"github.com/scribehq/scribe/internal/audio"
)

// prerollMS is how much unvoiced history the Framer retains so an
// utterance's word onset is not clipped (spec.md §9 "Preroll buffer").
const prerollMS = 300

// Framer classifies a stream of audio.Frame values as voiced/unvoiced and
// emits SpeechStarted / VoicedFrame / SpeechEnded events, generalizing the
// teacher's RMSVAD (pkg/orchestrator/vad.go) from a single threshold to the
// four-tier Aggressiveness model, with an explicit preroll ring buffer and
// skip-initial gate the teacher's single-purpose VAD didn't need (see
// DESIGN.md for how the resulting minConfirmed hysteresis deliberately
// shifts SpeechStarted's timing versus the literal per-frame algorithm).
//
// A Framer is logically owned by one Controller session, but Process and
// ForceEnd are called from two different goroutines (the capture pump and
// the Controller's actor loop, respectively) whenever an IPC Stop/Toggle
// races an in-flight frame, so every method locks mu around the shared
// state it touches.
type Framer struct {
	cfg Config

	mu sync.Mutex

	speechActive      bool
	silenceRunMS      uint32
	elapsedMSSinceRec uint32
	consecutiveVoiced int

	preroll []audio.Frame // ring of recent unvoiced frames, oldest first
}

// NewFramer constructs a Framer for one recording session.
func NewFramer(cfg Config) *Framer {
	return &Framer{cfg: cfg}
}

// Reset clears all internal state, ready for a new Recording session. Per
// spec.md §9's resolved open question, a second Start while already
// Recording is idempotent and must NOT reset VAD state — callers only call
// Reset when transitioning from Idle into Recording.
func (f *Framer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speechActive = false
	f.silenceRunMS = 0
	f.elapsedMSSinceRec = 0
	f.consecutiveVoiced = 0
	f.preroll = nil
}

// prerollCapacity returns how many 20ms frames fit in the preroll window.
func prerollCapacity() int {
	return prerollMS / audio.FrameDurationMS
}

// classify reports whether frame is voiced under the configured
// aggressiveness, via RMS energy over the normalized [-1,1] samples.
func (f *Framer) classify(frame audio.Frame) bool {
	if len(frame.Samples) == 0 {
		return false
	}
	var sumSq float64
	for _, s := range frame.Samples {
		v := float64(s) / 32768.0
		sumSq += v * v
	}
	rms := math.Sqrt(sumSq / float64(len(frame.Samples)))
	return rms > f.cfg.threshold()
}

// Process runs one frame through the per-frame algorithm of spec.md §4.2
// and appends any resulting events to out, returning the extended slice.
func (f *Framer) Process(frame audio.Frame, out []Event) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.elapsedMSSinceRec += audio.FrameDurationMS

	// Step 1: skip_initial_ms gate, measured from session (Recording) start
	// per the resolved open question in spec.md §9.
	if f.elapsedMSSinceRec <= uint32(f.cfg.SkipInitialMS) {
		return out
	}

	voiced := f.classify(frame)

	switch {
	case !f.speechActive && voiced:
		f.consecutiveVoiced++
		if f.consecutiveVoiced < f.cfg.minConfirmed() {
			// Still confirming; treat as preroll until confirmed.
			f.pushPreroll(frame)
			return out
		}
		// Confirmed: emit SpeechStarted, then flush preroll frames, then
		// this frame, as VoicedFrames, so the consumer's utterance buffer
		// (started on SpeechStarted) keeps the word onset.
		out = append(out, Event{Type: SpeechStarted})
		for _, p := range f.preroll {
			out = append(out, Event{Type: VoicedFrame, Samples: p.Samples})
		}
		f.preroll = nil
		out = append(out, Event{Type: VoicedFrame, Samples: frame.Samples})
		f.speechActive = true
		f.silenceRunMS = 0

	case f.speechActive && voiced:
		f.consecutiveVoiced++
		out = append(out, Event{Type: VoicedFrame, Samples: frame.Samples})
		f.silenceRunMS = 0

	case f.speechActive && !voiced:
		f.consecutiveVoiced = 0
		out = append(out, Event{Type: VoicedFrame, Samples: frame.Samples})
		f.silenceRunMS += audio.FrameDurationMS
		if f.silenceRunMS >= uint32(f.cfg.SilenceMS) {
			out = append(out, Event{Type: SpeechEnded})
			f.speechActive = false
		}

	default: // !speechActive && !voiced
		f.consecutiveVoiced = 0
		f.pushPreroll(frame)
	}

	return out
}

func (f *Framer) pushPreroll(frame audio.Frame) {
	f.preroll = append(f.preroll, frame)
	if cap := prerollCapacity(); len(f.preroll) > cap {
		f.preroll = f.preroll[len(f.preroll)-cap:]
	}
}

// ForceEnd closes the current utterance regardless of classifier state, as
// required when an IPC Stop command arrives during Recording (spec.md
// §4.2 "Tie-breaks"). Returns true if a SpeechEnded event should be emitted
// (i.e. speech was active).
func (f *Framer) ForceEnd() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.speechActive {
		return false
	}
	f.speechActive = false
	f.silenceRunMS = 0
	return true
}

// IsSpeechActive reports whether the Framer currently considers itself
// mid-utterance.
func (f *Framer) IsSpeechActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speechActive
}
