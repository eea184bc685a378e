package daemon

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scribehq/scribe/internal/audio"
	"github.com/scribehq/scribe/internal/errs"
	"github.com/scribehq/scribe/internal/inject"
	"github.com/scribehq/scribe/internal/ipc"
	"github.com/scribehq/scribe/internal/notify"
	"github.com/scribehq/scribe/internal/transcribe"
	"github.com/scribehq/scribe/internal/vad"
)

// stubTranscriber returns a canned Result or error without touching any
// real model, mirroring the teacher's hand-rolled mock style (e.g.
// pkg/orchestrator tests constructing providers with nil dependencies).
type stubTranscriber struct {
	result transcribe.Result
	err    error
}

func (s *stubTranscriber) Name() string { return "stub" }
func (s *stubTranscriber) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	return s.result, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func loudFrame() audio.Frame {
	samples := make([]int16, audio.FrameSamples)
	for i := range samples {
		samples[i] = 20000
	}
	return audio.Frame{Samples: samples, SampleRate: audio.SampleRate}
}

func silentFrame() audio.Frame {
	return audio.Frame{Samples: make([]int16, audio.FrameSamples), SampleRate: audio.SampleRate}
}

func testInjector(t *testing.T, outPath string) *inject.Injector {
	t.Helper()
	scriptPath := outPath + ".sh"
	script := "#!/bin/sh\nwhile IFS= read -r line; do printf '%s\\n' \"$line\" >> " + outPath + "; done\n"
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		t.Fatalf("writing capture script: %v", err)
	}
	return inject.New("/bin/sh", []string{scriptPath}, 0)
}

func newTestController(t *testing.T, frames []audio.Frame, trans transcribe.Transcriber) (*Controller, string) {
	t.Helper()
	outPath := filepath.Join(t.TempDir(), "injected")
	cfg := Config{Vad: vad.Config{Aggressiveness: vad.Aggressiveness0, SilenceMS: 60, MinDurationMS: 0, SkipInitialMS: 0}}
	c := New(
		func() audio.Source { return audio.NewFakeSource(frames) },
		trans,
		testInjector(t, outPath),
		notify.New(notify.Config{}, discardLogger()),
		discardLogger(),
		cfg,
	)
	return c, outPath
}

func waitForFile(t *testing.T, path, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f, err := os.Open(path)
		if err == nil {
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				if scanner.Text() == want {
					f.Close()
					return
				}
			}
			f.Close()
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in %s", want, path)
}

func sendIPC(c *Controller, cmd string) ipc.Response {
	reply := make(chan ipc.Response, 1)
	c.SubmitIPC(ipc.Command{Cmd: cmd, Reply: reply})
	return <-reply
}

func TestControllerFullDictationCycle(t *testing.T) {
	frames := make([]audio.Frame, 0, 10)
	for i := 0; i < 5; i++ {
		frames = append(frames, loudFrame())
	}
	for i := 0; i < 5; i++ {
		frames = append(frames, silentFrame())
	}

	c, outPath := newTestController(t, frames, &stubTranscriber{result: transcribe.Result{Text: "hello scribe"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	resp := sendIPC(c, ipc.CmdStart)
	if !resp.OK || resp.State != ipc.StateRecording {
		t.Fatalf("unexpected Start response: %+v", resp)
	}

	waitForFile(t, outPath, "type hello scribe")
}

func TestControllerStatusIdleInitially(t *testing.T) {
	c, _ := newTestController(t, nil, &stubTranscriber{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	resp := sendIPC(c, ipc.CmdStatus)
	if !resp.OK || resp.State != ipc.StateIdle {
		t.Fatalf("expected idle status, got %+v", resp)
	}
}

func TestControllerSecondStartIsNoOp(t *testing.T) {
	// A source with no frames keeps the Controller in Recording until a
	// second Start arrives.
	c, _ := newTestController(t, nil, &stubTranscriber{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	first := sendIPC(c, ipc.CmdStart)
	if first.State != ipc.StateRecording {
		t.Fatalf("expected Recording after first Start, got %+v", first)
	}
	second := sendIPC(c, ipc.CmdStart)
	if second.State != ipc.StateRecording {
		t.Fatalf("expected second Start to remain a no-op in Recording, got %+v", second)
	}
}

func TestControllerCancelDuringRecordingDiscardsBuffer(t *testing.T) {
	c, outPath := newTestController(t, nil, &stubTranscriber{result: transcribe.Result{Text: "should not appear"}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	sendIPC(c, ipc.CmdStart)
	resp := sendIPC(c, ipc.CmdCancel)
	if resp.State != ipc.StateIdle {
		t.Fatalf("expected Idle after Cancel, got %+v", resp)
	}

	if _, err := os.Stat(outPath); err == nil {
		t.Fatalf("expected no injection after cancelling during Recording")
	}
}

func TestControllerTranscriptionErrorReturnsToIdle(t *testing.T) {
	frames := []audio.Frame{loudFrame(), loudFrame(), silentFrame(), silentFrame(), silentFrame()}
	c, _ := newTestController(t, frames, &stubTranscriber{err: errs.New(errs.KindInferenceFailed, "boom")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	sendIPC(c, ipc.CmdStart)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp := sendIPC(c, ipc.CmdStatus)
		if resp.State == ipc.StateIdle {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("controller never returned to Idle after a transcription error")
}
