package transcribe

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/scribehq/scribe/internal/errs"
)

// Local runs whisper.cpp in-process via github.com/ggerganov/whisper.cpp's Go
// bindings, grounded on the cgo-driven load-once/serialize-inference pattern
// in NeboLoop's internal/voice/asr_whisper.go, generalized from that
// package's globals into an instance and from the raw cgo calls into the
// bindings' Model/Context API. The model is loaded lazily on first use and
// kept resident across requests per spec.md §4.4.
type Local struct {
	ModelPath string
	Threads   int

	loadOnce  sync.Once
	loadErr   error
	model     whisper.Model
	inferMu   sync.Mutex // serializes whisper_full calls, matching NeboLoop's inference mutex
	cancelled atomic.Bool
}

// NewLocal constructs a Local transcriber for the ggml model at modelPath.
// The model is not loaded until the first Transcribe call.
func NewLocal(modelPath string, threads int) *Local {
	if threads <= 0 {
		threads = 4
	}
	return &Local{ModelPath: modelPath, Threads: threads}
}

func (l *Local) Name() string { return "local" }

func (l *Local) ensureLoaded() error {
	l.loadOnce.Do(func() {
		m, err := whisper.New(l.ModelPath)
		if err != nil {
			l.loadErr = errs.Wrap(errs.KindModelLoadFailed, "loading whisper model", err)
			return
		}
		l.model = m
	})
	return l.loadErr
}

func (l *Local) Transcribe(ctx context.Context, req Request) (Result, error) {
	if err := l.ensureLoaded(); err != nil {
		return Result{}, err
	}
	if l.model == nil {
		return Result{}, errs.New(errs.KindModelNotLoaded, "whisper model unavailable")
	}
	if len(req.Utterance.PCM) == 0 {
		return Result{}, errs.New(errs.KindInferenceFailed, "empty utterance")
	}

	l.inferMu.Lock()
	defer l.inferMu.Unlock()

	wctx, err := l.model.NewContext()
	if err != nil {
		return Result{}, errs.Wrap(errs.KindInferenceFailed, "creating inference context", err)
	}
	wctx.SetThreads(uint(l.Threads))
	if req.Language != "" {
		if err := wctx.SetLanguage(req.Language); err != nil {
			return Result{}, errs.Wrap(errs.KindInferenceFailed, "setting language", err)
		}
	}
	if req.InitialPrompt != "" {
		wctx.SetInitialPrompt(req.InitialPrompt)
	}

	cancelCheck := func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return l.cancelled.Load()
		}
	}

	if cancelCheck() {
		return Result{}, errs.Wrap(errs.KindCancelled, "transcription cancelled before decode", ctx.Err())
	}

	// whisper.cpp's Process takes the sample slice plus three callbacks
	// (encoder-begin, per-segment, progress); there is no plain cancel
	// argument. The encoder-begin callback is the one boolean-returning
	// hook whisper.cpp checks before committing to a decode pass, so
	// cooperative cancellation is wired there instead of passed inline,
	// per the two pack usages of this exact pinned bindings version.
	var segments []string
	var cancelledMidDecode bool
	encoderBegin := func() bool {
		return !cancelCheck()
	}
	segmentCallback := func(seg whisper.Segment) {
		if cancelCheck() {
			cancelledMidDecode = true
			return
		}
		text := strings.TrimSpace(stripWhisperMarkers(seg.Text))
		if text != "" {
			segments = append(segments, text)
		}
	}

	if err := wctx.Process(req.Utterance.PCM, encoderBegin, segmentCallback, nil); err != nil {
		if cancelCheck() {
			return Result{}, errs.Wrap(errs.KindCancelled, "transcription cancelled", ctx.Err())
		}
		return Result{}, errs.Wrap(errs.KindInferenceFailed, "whisper decode failed", err)
	}
	if cancelledMidDecode {
		return Result{}, errs.Wrap(errs.KindCancelled, "transcription cancelled mid-decode", ctx.Err())
	}

	return Result{Text: strings.Join(segments, " ")}, nil
}

// Cancel requests that any in-flight Transcribe call stop at the next
// decode-step check, per spec.md §4.4's cooperative cancellation token.
func (l *Local) Cancel() {
	l.cancelled.Store(true)
}

// ResetCancel clears a prior Cancel so the Local transcriber can serve a
// fresh session.
func (l *Local) ResetCancel() {
	l.cancelled.Store(false)
}

// stripWhisperMarkers removes whisper.cpp's bracketed special tokens (e.g.
// "[_BEG_]", "[_TT_123]") that sometimes survive segment decoding.
func stripWhisperMarkers(text string) string {
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch r {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
