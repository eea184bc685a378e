package ipc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/scribehq/scribe/internal/errs"
)

const probeTimeout = 300 * time.Millisecond

// shutdownGrace bounds how long Serve waits for in-flight connections to
// finish replying before force-closing the listener, per spec.md §5.
const shutdownGrace = time.Second

// Command is one decoded client request, carrying a channel the Controller
// uses to deliver the Response once the command has been processed. This is
// the `Ipc(command, reply_handle)` event of spec.md §4.6.
type Command struct {
	Cmd   string
	Reply chan<- Response
}

// Server accepts connections on a Unix domain socket and funnels each
// decoded Request into a single Controller-owned queue via Submit,
// per spec.md §4.7 ("all produce events into the single Controller queue").
type Server struct {
	Path   string
	Submit func(Command)
	Logger *slog.Logger

	listener net.Listener
	conns    sync.WaitGroup
}

// Listen binds the socket at s.Path, per spec.md §4.7: if a stale socket
// file exists and no live listener answers a probe Ping, it is removed and
// the bind retried once.
func (s *Server) Listen() error {
	ln, err := net.Listen("unix", s.Path)
	if err == nil {
		s.listener = ln
		return os.Chmod(s.Path, 0o600)
	}
	if !errors.Is(err, os.ErrExist) && !isAddrInUse(err) {
		return errs.Wrap(errs.KindIpcProtocolError, "binding socket", err)
	}

	if probeAlive(s.Path) {
		return errs.New(errs.KindBusy, "another scribe daemon is already listening on "+s.Path)
	}

	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.KindIpcProtocolError, "removing stale socket", err)
	}
	ln, err = net.Listen("unix", s.Path)
	if err != nil {
		return errs.Wrap(errs.KindIpcProtocolError, "binding socket after removing stale path", err)
	}
	s.listener = ln
	return os.Chmod(s.Path, 0o600)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// probeAlive dials path and sends a Ping, returning true if a live daemon
// answers before probeTimeout elapses.
func probeAlive(path string) bool {
	conn, err := net.DialTimeout("unix", path, probeTimeout)
	if err != nil {
		return false
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(probeTimeout))
	if err := writeMessage(conn, Request{Cmd: CmdPing}); err != nil {
		return false
	}
	var resp Response
	return readMessage(conn, &resp) == nil
}

// Serve accepts connections until ctx is cancelled, handling each
// concurrently. It returns after the listener is closed.
func (s *Server) Serve(ctx context.Context) error {
	shutdownCh := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(shutdownCh)

		// Give connections already mid-exchange up to shutdownGrace to
		// deliver their reply before the listener is force-closed under
		// them, per spec.md §5.
		drained := make(chan struct{})
		go func() {
			s.conns.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(shutdownGrace):
			if s.Logger != nil {
				s.Logger.Warn("ipc shutdown grace period elapsed with connections still open")
			}
		}

		s.listener.Close()
		os.Remove(s.Path)
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if s.Logger != nil {
				s.Logger.Warn("ipc accept failed", "error", err)
			}
			continue
		}
		s.conns.Add(1)
		go s.handleConn(shutdownCh, conn)
	}
}

func (s *Server) handleConn(shutdownCh <-chan struct{}, conn net.Conn) {
	defer s.conns.Done()
	defer conn.Close()

	var req Request
	if err := readMessage(conn, &req); err != nil {
		writeMessage(conn, Response{OK: false, Error: string(errs.KindIpcProtocolError), Message: err.Error()})
		return
	}

	if req.Cmd == CmdPing {
		writeMessage(conn, Response{OK: true})
		return
	}

	switch req.Cmd {
	case CmdStart, CmdStop, CmdCancel, CmdToggle, CmdStatus:
	default:
		writeMessage(conn, Response{OK: false, Error: string(errs.KindUnknownCommand), Message: req.Cmd})
		return
	}

	replyCh := make(chan Response, 1)
	s.Submit(Command{Cmd: req.Cmd, Reply: replyCh})

	select {
	case resp := <-replyCh:
		writeMessage(conn, resp)
		return
	case <-shutdownCh:
	}

	// Shutdown began while this exchange was in flight: still give the
	// Controller's reply a chance to land within the grace window instead
	// of aborting the connection on the spot.
	select {
	case resp := <-replyCh:
		writeMessage(conn, resp)
	case <-time.After(shutdownGrace):
		writeMessage(conn, Response{OK: false, Error: string(errs.KindIpcProtocolError), Message: "server shutting down"})
	}
}

// Close shuts down the listener and removes the socket file.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	os.Remove(s.Path)
	return err
}
