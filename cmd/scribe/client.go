package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scribehq/scribe/internal/ipc"
)

// newOneShotCmd builds a CLI subcommand that sends a single IPC command to
// the running daemon and prints its Response, per spec.md §6's
// "scribe start|stop|cancel|toggle|status connects to the socket and
// performs one command."
func newOneShotCmd(cmd, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return sendOneShot(cmd)
		},
	}
}

func sendOneShot(cmd string) error {
	client := ipc.NewClient(resolveSocketPath())
	resp, err := client.Send(cmd)
	if err != nil {
		switch {
		case isConnRefused(err):
			return newExitError(exitDaemonNotRunning, fmt.Errorf("daemon not running"))
		case errors.Is(err, os.ErrPermission):
			return newExitError(exitPermissionDenied, err)
		}
		return newExitError(exitProtocolError, err)
	}
	if !resp.OK {
		return newExitError(exitFailure, fmt.Errorf("%s: %s", resp.Error, resp.Message))
	}
	fmt.Println(resp.State)
	return nil
}

// isConnRefused reports whether err ultimately wraps a connection-refused
// or no-such-file condition, both of which mean "no daemon is listening".
func isConnRefused(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "no such file")
}
