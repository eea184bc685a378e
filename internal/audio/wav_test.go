package audio

import (
	"bytes"
	"testing"
)

func TestEncodeWav(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := EncodeWav(pcm, SampleRate)

	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Errorf("expected RIFF prefix")
	}
	if !bytes.Contains(wav, []byte("WAVE")) {
		t.Errorf("expected WAVE format identifier")
	}

	expectedLen := 44 + len(pcm)
	if len(wav) != expectedLen {
		t.Errorf("expected length %d, got %d", expectedLen, len(wav))
	}
}

func TestDecodeWavSampleCount(t *testing.T) {
	pcm := make([]byte, 2*100) // 100 16-bit samples
	wav := EncodeWav(pcm, SampleRate)

	n, err := DecodeWavSampleCount(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 100 {
		t.Errorf("expected 100 samples, got %d", n)
	}
}

func TestDecodeWavSampleCountRejectsShortPayload(t *testing.T) {
	if _, err := DecodeWavSampleCount([]byte("too short")); err == nil {
		t.Fatalf("expected error for short payload")
	}
}
