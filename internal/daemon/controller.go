// Package daemon implements the Controller/SessionStateMachine of
// spec.md §4.6: a single-threaded actor, grounded on the teacher's
// ManagedStream (pkg/orchestrator/managed_stream.go) — same idea of one
// owned state struct mutated only from inside its own goroutine, a
// generation counter to discard stale async results (teacher's
// sttGeneration / isStale), and an internal events channel merging input
// from multiple producers. Unlike ManagedStream's always-on streaming
// pipeline, the Controller here is a strict four-state machine driven by
// VAD, IPC, and transcription-completion events.
package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scribehq/scribe/internal/audio"
	"github.com/scribehq/scribe/internal/errs"
	"github.com/scribehq/scribe/internal/inject"
	"github.com/scribehq/scribe/internal/ipc"
	"github.com/scribehq/scribe/internal/notify"
	"github.com/scribehq/scribe/internal/transcribe"
	"github.com/scribehq/scribe/internal/vad"
)

// State is one of the Controller's four session states.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
	StateCancelling
)

func (s State) ipcString() string {
	switch s {
	case StateRecording:
		return ipc.StateRecording
	case StateTranscribing, StateCancelling:
		// Cancelling has no externally-visible wire value; it is still
		// "in flight" from a client's perspective until the in-progress
		// transcription resolves.
		return ipc.StateTranscribing
	default:
		return ipc.StateIdle
	}
}

// cancellableTranscriber is implemented by transcribe.Local, whose
// cancellation works via a checked atomic flag rather than context
// cancellation (spec.md §5 "local inference checks it between decode
// steps").
type cancellableTranscriber interface {
	Cancel()
	ResetCancel()
}

// vadEvent wraps a vad.Event from the capture/VAD pipeline.
type vadEvent struct {
	ev vad.Event
}

// ipcEvent wraps one decoded IPC command with its reply channel.
type ipcEvent struct {
	cmd   string
	reply chan<- ipc.Response
}

// transEvent reports a finished transcription for a given session
// generation, so stale results from a cancelled or superseded session can
// be identified and discarded (spec.md §5).
type transEvent struct {
	generation uint64
	result     transcribe.Result
	err        error
}

// shutdownEvent requests the Controller stop all subsystems and exit its
// run loop.
type shutdownEvent struct{}

// Config bundles the Controller's session-scoped settings, mirroring the
// [vad] and [transcription] sections of internal/config.
type Config struct {
	Vad           vad.Config
	Language      string
	InitialPrompt string
}

// Controller is the sole authority over session state. Construct with New
// and drive it with Run in its own goroutine; SubmitIPC and Shutdown are
// the only methods safe to call from other goroutines.
type Controller struct {
	cfg         Config
	newSource   func() audio.Source
	transcriber transcribe.Transcriber
	injector    *inject.Injector
	notifier    *notify.Notifier
	logger      *slog.Logger

	events chan any

	state      State
	generation uint64
	sessionID  string
	framer     *vad.Framer
	buffer     *vad.Buffer
	handle     *audio.Handle

	captureCancel context.CancelFunc // governs the Recording-session AudioSource
	transCtx      context.Context    // passed to the active transcription task
	transCancel   context.CancelFunc
}

// New constructs a Controller. newSource is called once per Recording
// session so a fresh audio.Handle is obtained each time.
func New(newSource func() audio.Source, transcriber transcribe.Transcriber, injector *inject.Injector, notifier *notify.Notifier, logger *slog.Logger, cfg Config) *Controller {
	return &Controller{
		cfg:         cfg,
		newSource:   newSource,
		transcriber: transcriber,
		injector:    injector,
		notifier:    notifier,
		logger:      logger,
		events:      make(chan any, 64),
		framer:      vad.NewFramer(cfg.Vad),
		buffer:      vad.NewBuffer(cfg.Vad),
	}
}

// SubmitIPC satisfies ipc.Server.Submit: it enqueues one decoded command
// for the Controller's run loop, implementing spec.md §4.7's "all produce
// events into the single Controller queue."
func (c *Controller) SubmitIPC(cmd ipc.Command) {
	c.events <- ipcEvent{cmd: cmd.Cmd, reply: cmd.Reply}
}

// Shutdown requests the run loop stop after flushing subsystems.
func (c *Controller) Shutdown() {
	c.events <- shutdownEvent{}
}

// Run is the Controller's single-threaded actor loop. It returns once a
// shutdownEvent has been processed.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case raw := <-c.events:
			if c.dispatch(raw) {
				return
			}
		case <-ctx.Done():
			c.stopRecordingIfAny()
			return
		}
	}
}

// dispatch handles one event and reports whether the loop should exit.
func (c *Controller) dispatch(raw any) bool {
	switch ev := raw.(type) {
	case vadEvent:
		c.handleVad(ev.ev)
	case ipcEvent:
		c.handleIPC(ev)
	case transEvent:
		c.handleTrans(ev)
	case shutdownEvent:
		c.stopRecordingIfAny()
		return true
	}
	return false
}

func (c *Controller) handleIPC(ev ipcEvent) {
	switch ev.cmd {
	case ipc.CmdStart:
		if c.state == StateIdle {
			c.startRecording()
		}
		ev.reply <- ipc.Response{OK: true, State: c.state.ipcString()}

	case ipc.CmdToggle:
		switch c.state {
		case StateIdle:
			c.startRecording()
			ev.reply <- ipc.Response{OK: true, State: c.state.ipcString()}
		case StateRecording:
			c.forceStopRecording()
			ev.reply <- ipc.Response{OK: true, State: c.state.ipcString()}
		default:
			ev.reply <- ipc.Response{OK: true, State: c.state.ipcString()}
		}

	case ipc.CmdStop:
		if c.state == StateRecording {
			c.forceStopRecording()
		}
		ev.reply <- ipc.Response{OK: true, State: c.state.ipcString()}

	case ipc.CmdCancel:
		switch c.state {
		case StateRecording:
			c.stopRecordingIfAny()
			c.buffer = vad.NewBuffer(c.cfg.Vad)
			c.notifier.Status("cancelled")
			c.state = StateIdle
		case StateTranscribing:
			if cancellable, ok := c.transcriber.(cancellableTranscriber); ok {
				cancellable.Cancel()
			}
			if c.transCancel != nil {
				c.transCancel()
			}
			c.state = StateCancelling
		}
		ev.reply <- ipc.Response{OK: true, State: c.state.ipcString()}

	case ipc.CmdStatus:
		ev.reply <- ipc.Response{OK: true, State: c.state.ipcString()}

	default:
		ev.reply <- ipc.Response{OK: false, Error: string(errs.KindUnknownCommand), Message: ev.cmd}
	}
}

func (c *Controller) handleVad(ev vad.Event) {
	if c.state != StateRecording {
		return
	}
	switch ev.Type {
	case vad.SpeechStarted:
		c.buffer.Start(time.Now())
	case vad.VoicedFrame:
		c.buffer.Append(ev.Samples)
	case vad.SpeechEnded:
		c.finishRecording()
	}
}

func (c *Controller) handleTrans(ev transEvent) {
	if ev.generation != c.generation {
		c.logger.Debug("discarding stale transcription result", "session", c.sessionID, "generation", ev.generation, "current", c.generation)
		return // stale result from a superseded or cancelled session
	}
	wasCancelling := c.state == StateCancelling
	c.state = StateIdle
	if wasCancelling {
		return // Cancelling -> Trans(_) discards the result unconditionally
	}
	if ev.err != nil {
		c.logger.Error("transcription failed", "session", c.sessionID, "generation", ev.generation, "error", ev.err)
		c.notifier.Error(string(errs.KindOf(ev.err)), ev.err.Error())
		return
	}
	if err := c.injector.Inject(ev.result.Text); err != nil {
		c.notifier.Error(string(errs.KindOf(err)), err.Error())
	}
	c.notifier.Preview(ev.result.Text)
}

// startRecording opens a fresh AudioSource, resets VAD state, and spawns the
// frame-pump goroutine that feeds vadEvents back into the Controller's
// queue.
func (c *Controller) startRecording() {
	c.framer.Reset()
	c.generation++
	gen := c.generation
	c.sessionID = uuid.New().String()

	ctx, cancel := context.WithCancel(context.Background())
	c.captureCancel = cancel

	source := c.newSource()
	handle, err := source.Start(ctx)
	if err != nil {
		c.logger.Error("recording start failed", "session", c.sessionID, "generation", gen, "error", err)
		c.notifier.Error(string(errs.KindDeviceUnavailable), err.Error())
		cancel()
		return
	}
	c.handle = handle
	c.state = StateRecording
	c.logger.Info("recording started", "session", c.sessionID, "generation", gen)
	c.notifier.Status("recording")

	go c.pumpFrames(gen, handle)
}

// pumpFrames runs on its own goroutine, classifying frames and forwarding
// the resulting vad.Events back into the Controller's single queue so all
// state mutation still happens on the actor goroutine.
func (c *Controller) pumpFrames(gen uint64, handle *audio.Handle) {
	var scratch []vad.Event
	for frame := range handle.Frames {
		scratch = scratch[:0]
		scratch = c.framerProcess(frame, scratch)
		for _, ev := range scratch {
			select {
			case c.events <- vadEvent{ev: ev}:
			default:
				// Queue saturated; drop this event rather than block the
				// realtime capture path. (AudioSource upstream applies its
				// own drop-oldest policy to frames, spec.md §4.1.)
			}
		}
	}
	if err := handle.Err(); err != nil {
		c.events <- vadEvent{ev: vad.Event{Type: vad.SpeechEnded}}
		c.notifier.Error(string(errs.KindDeviceLost), err.Error())
	}
}

// framerProcess exists as a seam so tests can drive the Controller's VAD
// state machine without a live audio.Source.
func (c *Controller) framerProcess(frame audio.Frame, out []vad.Event) []vad.Event {
	return c.framer.Process(frame, out)
}

func (c *Controller) forceStopRecording() {
	if c.framer.ForceEnd() {
		c.finishRecording()
		return
	}
	c.stopRecordingIfAny()
	c.buffer = vad.NewBuffer(c.cfg.Vad)
	c.state = StateIdle
	c.notifier.Status("idle")
}

// finishRecording stops the AudioSource and either spawns a transcription
// task (utterance long enough) or discards the buffer (too short), per the
// Recording -> Vad(SpeechEnded) row of spec.md §4.6.
func (c *Controller) finishRecording() {
	c.stopRecordingIfAny()

	utterance, err := c.buffer.Finish(time.Now())
	c.buffer = vad.NewBuffer(c.cfg.Vad)

	if err != nil {
		c.state = StateIdle
		c.notifier.Status("idle")
		return
	}

	gen := c.generation
	transCtx, transCancel := context.WithCancel(context.Background())
	c.transCtx = transCtx
	c.transCancel = transCancel
	c.state = StateTranscribing
	c.notifier.Status("transcribing")

	if local, ok := c.transcriber.(cancellableTranscriber); ok {
		local.ResetCancel()
	}

	req := transcribe.Request{
		Utterance:     utterance,
		Language:      c.cfg.Language,
		InitialPrompt: c.cfg.InitialPrompt,
	}

	go func() {
		result, err := c.transcriber.Transcribe(transCtx, req)
		c.events <- transEvent{generation: gen, result: result, err: err}
	}()
}

func (c *Controller) stopRecordingIfAny() {
	if c.handle != nil {
		c.handle.Stop()
		c.handle = nil
	}
	if c.captureCancel != nil {
		c.captureCancel()
		c.captureCancel = nil
	}
}
