package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/internal/audio"
	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/daemon"
	"github.com/scribehq/scribe/internal/inject"
	"github.com/scribehq/scribe/internal/ipc"
	"github.com/scribehq/scribe/internal/modelcache"
	"github.com/scribehq/scribe/internal/notify"
	"github.com/scribehq/scribe/internal/transcribe"
	"github.com/scribehq/scribe/internal/vad"
)

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the scribe dictation daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}
}

// runDaemon wires together every subsystem named in SPEC_FULL.md §2 and
// drives them until SIGINT/SIGTERM, mirroring the teacher's
// cmd/agent/main.go signal-handling shutdown sequence.
func runDaemon(parent context.Context) error {
	cfgPath, err := resolveConfigPath()
	if err != nil {
		return newExitError(exitFailure, err)
	}

	// The logger is built from a bootstrap level first, since Load itself
	// wants somewhere to report unrecognized keys.
	bootLogger, err := newLogger(config.Logging{Level: "info"})
	if err != nil {
		return newExitError(exitFailure, err)
	}

	cfg, err := config.Load(cfgPath, bootLogger)
	if err != nil {
		return newExitError(exitFailure, err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return newExitError(exitFailure, err)
	}

	transcriber, err := buildTranscriber(cfg.Transcription)
	if err != nil {
		return newExitError(exitFailure, err)
	}

	injector := inject.New(cfg.Injection.Method, nil, cfg.Injection.DelayMS)
	defer injector.Close()

	notifier := notify.New(notify.Config{
		EnableStatus:  cfg.Notifications.EnableStatus,
		EnableErrors:  cfg.Notifications.EnableErrors,
		ShowPreview:   cfg.Notifications.ShowPreview,
		PreviewLength: cfg.Notifications.PreviewLength,
	}, logger)

	newSource := func() audio.Source { return audio.NewMalgoSource(cfg.Audio.Device) }

	ctrl := daemon.New(newSource, transcriber, injector, notifier, logger, daemon.Config{
		Vad: vad.Config{
			Aggressiveness: vad.Aggressiveness(cfg.Vad.Aggressiveness),
			SilenceMS:      cfg.Vad.SilenceMS,
			MinDurationMS:  cfg.Vad.MinDurationMS,
			SkipInitialMS:  cfg.Vad.SkipInitialMS,
		},
		Language:      cfg.Transcription.Language,
		InitialPrompt: cfg.Transcription.InitialPrompt,
	})

	server := &ipc.Server{
		Path:   resolveSocketPath(),
		Submit: ctrl.SubmitIPC,
		Logger: logger,
	}
	if err := server.Listen(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return newExitError(exitPermissionDenied, err)
		}
		return newExitError(exitFailure, err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go ctrl.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ctx) }()

	// Debug/progress websocket feed for tray-icon style tooling. Loopback
	// only; failures here never take down the daemon itself.
	go func() {
		if err := notify.ServeDebug(ctx, "127.0.0.1:7323", notifier); err != nil && ctx.Err() == nil {
			logger.Warn("debug feed stopped", "error", err)
		}
	}()

	logger.Info("scribe daemon started", "socket", server.Path)
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		ctrl.Shutdown()
		// Wait for the IPC server's own shutdown goroutine to drain
		// in-flight connections (up to its 1s grace period, spec.md §5)
		// and close the listener, rather than racing it with an
		// independent sleep-then-return.
		if err := <-errCh; err != nil {
			logger.Warn("ipc server exited with error during shutdown", "error", err)
		}
		// Give the control loop a moment to flush before the process exits,
		// matching spec.md §4.6's "Signal(shutdown) -> stop subsystems,
		// flush -> (exit)".
		time.Sleep(50 * time.Millisecond)
		return nil
	case err := <-errCh:
		if err != nil {
			return newExitError(exitFailure, err)
		}
		return nil
	}
}

// buildTranscriber constructs the configured Transcriber backend, per
// spec.md §4.4 and the [transcription] config section.
func buildTranscriber(cfg config.Transcription) (transcribe.Transcriber, error) {
	switch cfg.Backend {
	case "openai":
		apiKey := os.Getenv(cfg.APIKeyEnv)
		return transcribe.NewRemote(
			"https://api.openai.com/v1/audio/transcriptions",
			apiKey,
			cfg.APIModel,
			time.Duration(cfg.APITimeoutSecs)*time.Second,
		), nil
	case "local":
		cache, err := modelcache.New(modelCacheDirOrDefault())
		if err != nil {
			return nil, err
		}
		return transcribe.NewLocal(cache.Path(cfg.Model), 0), nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", cfg.Backend)
	}
}
