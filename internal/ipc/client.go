package ipc

import (
	"net"
	"time"

	"github.com/scribehq/scribe/internal/errs"
)

const clientTimeout = 5 * time.Second

// Client sends one command per connection to a running daemon's socket.
type Client struct {
	Path string
}

// NewClient constructs a Client targeting the socket at path.
func NewClient(path string) *Client {
	return &Client{Path: path}
}

// Send dials the socket, writes cmd, and returns the daemon's Response.
// Each call opens and closes its own connection, per spec.md §4.7's "one
// request and one response per connection".
func (c *Client) Send(cmd string) (Response, error) {
	conn, err := net.DialTimeout("unix", c.Path, clientTimeout)
	if err != nil {
		return Response{}, errs.Wrap(errs.KindIpcProtocolError, "connecting to daemon", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(clientTimeout))

	if err := writeMessage(conn, Request{Cmd: cmd}); err != nil {
		return Response{}, err
	}

	var resp Response
	if err := readMessage(conn, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
