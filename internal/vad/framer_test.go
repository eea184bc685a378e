package vad

import (
	"testing"

	"github.com/scribehq/scribe/internal/audio"
)

func tone(amplitude int16) audio.Frame {
	samples := make([]int16, audio.FrameSamples)
	for i := range samples {
		samples[i] = amplitude
	}
	return audio.Frame{Samples: samples, SampleRate: audio.SampleRate, Channels: 1}
}

func silence() audio.Frame {
	return tone(0)
}

func TestFramerSpeechStartThenEnd(t *testing.T) {
	cfg := Config{Aggressiveness: Aggressiveness0, SilenceMS: 60, MinDurationMS: 0, SkipInitialMS: 0}
	f := NewFramer(cfg)

	loud := tone(20000)
	var events []Event
	for i := 0; i < cfg.minConfirmed(); i++ {
		events = f.Process(loud, events)
	}

	sawStart := false
	for _, e := range events {
		if e.Type == SpeechStarted {
			sawStart = true
		}
	}
	if !sawStart {
		t.Fatalf("expected SpeechStarted after %d confirming frames, got %+v", cfg.minConfirmed(), events)
	}

	// Drive silence long enough to exceed SilenceMS and trigger SpeechEnded.
	events = nil
	framesNeeded := int(cfg.SilenceMS)/audio.FrameDurationMS + 1
	sawEnd := false
	for i := 0; i < framesNeeded; i++ {
		events = f.Process(silence(), events)
	}
	for _, e := range events {
		if e.Type == SpeechEnded {
			sawEnd = true
		}
	}
	if !sawEnd {
		t.Fatalf("expected SpeechEnded after %d silent frames, got %+v", framesNeeded, events)
	}
}

func TestFramerSkipInitialDiscardsEarlyFrames(t *testing.T) {
	cfg := Config{Aggressiveness: Aggressiveness0, SilenceMS: 500, MinDurationMS: 0, SkipInitialMS: 100}
	f := NewFramer(cfg)

	loud := tone(20000)
	var events []Event
	// 100ms / 20ms = 5 frames fall within the skip window.
	for i := 0; i < 5; i++ {
		events = f.Process(loud, events)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events during skip_initial_ms window, got %+v", events)
	}
}

func TestFramerForceEndOnlyWhenSpeaking(t *testing.T) {
	cfg := DefaultConfig()
	f := NewFramer(cfg)

	if f.ForceEnd() {
		t.Fatalf("ForceEnd should report false when not speaking")
	}

	f.speechActive = true
	if !f.ForceEnd() {
		t.Fatalf("ForceEnd should report true when speaking")
	}
	if f.IsSpeechActive() {
		t.Fatalf("speech should no longer be active after ForceEnd")
	}
}

func TestFramerResetClearsState(t *testing.T) {
	cfg := DefaultConfig()
	f := NewFramer(cfg)
	f.speechActive = true
	f.silenceRunMS = 400
	f.elapsedMSSinceRec = 900
	f.preroll = []audio.Frame{silence()}

	f.Reset()

	if f.speechActive || f.silenceRunMS != 0 || f.elapsedMSSinceRec != 0 || len(f.preroll) != 0 {
		t.Fatalf("Reset left stale state: %+v", f)
	}
}
