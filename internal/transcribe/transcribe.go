// Package transcribe implements spec.md §4.4's Transcriber abstraction: a
// common contract over a Local (in-process whisper.cpp) and a Remote
// (HTTPS provider) speech-to-text backend, mirroring the teacher's
// polymorphic STTProvider capability design (pkg/orchestrator/types.go).
package transcribe

import (
	"context"

	"github.com/scribehq/scribe/internal/vad"
)

// Request bundles one finalized utterance with optional decoding hints, per
// spec.md §3's TranscriptionRequest.
type Request struct {
	Utterance     vad.Utterance
	Language      string // ISO-639-1, empty for auto-detect
	InitialPrompt string
}

// Result carries the decoded text on success. Callers distinguish failure
// via the returned error's Kind (see internal/errs), matching spec.md's
// Ok{text} | Err{kind} TranscriptionResult.
type Result struct {
	Text string
}

// Transcriber turns a finalized utterance into text. Implementations may
// take seconds and must honor ctx cancellation, checking it between major
// steps and returning a Cancelled-kind error if cancelled (spec.md §4.4).
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
	Name() string
}
