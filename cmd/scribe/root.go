package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/ipc"
)

// Exit codes, per spec.md §6: 0 success; 1 generic failure; 2 daemon not
// running; 3 IPC protocol error; 4 permission denied.
const (
	exitOK               = 0
	exitFailure          = 1
	exitDaemonNotRunning = 2
	exitProtocolError    = 3
	exitPermissionDenied = 4
)

var version = "dev"

var (
	flagConfigPath string
	flagSocketPath string
)

// Execute builds and runs the root command, returning the process exit
// code. Kept separate from main so tests could drive it directly if needed.
func Execute() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if code, ok := exitCodeOf(err); ok {
			if msg := err.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, "scribe:", msg)
			}
			return code
		}
		fmt.Fprintln(os.Stderr, "scribe:", err)
		return exitFailure
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "scribe",
		Short:   "Voice-dictation daemon and control CLI",
		Version: version,
		// `scribe` with no subcommand runs the daemon, per spec.md §6.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to config.toml (default ~/.config/scribe/config.toml)")
	root.PersistentFlags().StringVar(&flagSocketPath, "socket", "", "path to the control socket (default $XDG_RUNTIME_DIR/scribe.sock)")

	root.AddCommand(
		newDaemonCmd(),
		newOneShotCmd(ipc.CmdStart, "start", "Begin a recording session"),
		newOneShotCmd(ipc.CmdStop, "stop", "Stop recording and transcribe"),
		newOneShotCmd(ipc.CmdCancel, "cancel", "Cancel the current session"),
		newOneShotCmd(ipc.CmdToggle, "toggle", "Toggle recording on or off"),
		newOneShotCmd(ipc.CmdStatus, "status", "Report the daemon's current state"),
		newModelCmd(),
	)
	return root
}

// newLogger builds the structured logger used by every subcommand, colored
// via github.com/lmittmann/tint, falling back to a plain JSON handler when
// writing to a file.
func newLogger(cfg config.Logging) (*slog.Logger, error) {
	level := levelFromString(cfg.Level)

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
		}
		return slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})), nil
	}

	return slog.New(tint.NewHandler(out, &tint.Options{Level: level})), nil
}

func levelFromString(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func resolveConfigPath() (string, error) {
	if flagConfigPath != "" {
		return flagConfigPath, nil
	}
	return config.DefaultPath()
}

// resolveSocketPath implements spec.md §6's socket location: honor
// $XDG_RUNTIME_DIR/scribe.sock, falling back to a temp directory when the
// environment variable is unset.
func resolveSocketPath() string {
	if flagSocketPath != "" {
		return flagSocketPath
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "scribe.sock")
	}
	return filepath.Join(os.TempDir(), "scribe.sock")
}
