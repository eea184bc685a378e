package ipc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestServerClientRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.sock")

	srv := &Server{
		Path: path,
		Submit: func(cmd Command) {
			cmd.Reply <- Response{OK: true, State: StateRecording}
		},
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	client := NewClient(path)
	resp, err := client.Send(CmdStart)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !resp.OK || resp.State != StateRecording {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestServerRejectsUnknownCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.sock")
	srv := &Server{Path: path, Submit: func(cmd Command) {
		cmd.Reply <- Response{OK: true}
	}}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	client := NewClient(path)
	resp, err := client.Send("nonsense")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.OK || resp.Error != "UnknownCommand" {
		t.Errorf("expected UnknownCommand error, got %+v", resp)
	}
}

func TestServerPingDoesNotReachSubmit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.sock")
	called := false
	srv := &Server{Path: path, Submit: func(cmd Command) {
		called = true
		cmd.Reply <- Response{OK: true}
	}}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	client := NewClient(path)
	resp, err := client.Send(CmdPing)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !resp.OK {
		t.Errorf("expected OK ping response, got %+v", resp)
	}
	if called {
		t.Errorf("ping should not reach the Controller submit queue")
	}
}

func TestStaleSocketIsRebound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.sock")

	// Simulate a stale socket file left behind by a crashed daemon: bind,
	// then close the listener without unlinking its path.
	first := &Server{Path: path, Submit: func(cmd Command) { cmd.Reply <- Response{OK: true} }}
	if err := first.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	// Don't call Close() (which unlinks); close the raw listener with
	// unlink-on-close disabled to leave the path on disk like a crash would.
	first.listener.(*net.UnixListener).SetUnlinkOnClose(false)
	first.listener.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected stale socket path to remain on disk: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	second := &Server{Path: path, Submit: func(cmd Command) { cmd.Reply <- Response{OK: true} }}
	if err := second.Listen(); err != nil {
		t.Fatalf("expected stale socket to be rebound, got error: %v", err)
	}
	defer second.Close()
}
