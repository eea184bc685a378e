package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/scribehq/scribe/internal/errs"
)

const maxMessageBytes = 1 << 20 // 1 MiB, generous for any Request/Response

// writeMessage writes a 4-byte big-endian length prefix followed by the
// JSON encoding of v.
func writeMessage(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errs.Wrap(errs.KindIpcProtocolError, "encoding message", err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return errs.Wrap(errs.KindIpcProtocolError, "writing length prefix", err)
	}
	if _, err := w.Write(payload); err != nil {
		return errs.Wrap(errs.KindIpcProtocolError, "writing message body", err)
	}
	return nil
}

// readMessage reads one length-prefixed JSON message into v.
func readMessage(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return errs.Wrap(errs.KindIpcProtocolError, "reading length prefix", err)
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxMessageBytes {
		return errs.New(errs.KindIpcProtocolError, fmt.Sprintf("message too large: %d bytes", n))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return errs.Wrap(errs.KindIpcProtocolError, "reading message body", err)
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return errs.Wrap(errs.KindIpcProtocolError, "decoding message", err)
	}
	return nil
}
