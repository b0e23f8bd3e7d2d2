// Package transport implements the bidirectional framed channel between
// controller and worker: a length-prefixed frame codec over net.Conn, with
// payloads encoded using protobuf's low-level wire primitives rather than a
// generated service, since the frame format here is hand-specified rather
// than a gRPC service definition.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameKind classifies a frame's payload.
type FrameKind byte

const (
	KindCommand FrameKind = iota
	KindCommandResult
	KindEvent
	KindStop
)

func (k FrameKind) String() string {
	switch k {
	case KindCommand:
		return "Command"
	case KindCommandResult:
		return "CommandResult"
	case KindEvent:
		return "Event"
	case KindStop:
		return "Stop"
	default:
		return fmt.Sprintf("FrameKind(%d)", byte(k))
	}
}

// maxFrameBody bounds a single frame's [kind][payload] body so a corrupt or
// hostile length field cannot force an unbounded allocation.
const maxFrameBody = 64 << 20

// WriteFrame writes one frame: a big-endian u32 length covering the kind
// byte and payload, then the kind byte, then payload.
func WriteFrame(w io.Writer, kind FrameKind, payload []byte) error {
	body := make([]byte, 1+len(payload))
	body[0] = byte(kind)
	copy(body[1:], payload)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one frame, returning its kind and payload.
func ReadFrame(r io.Reader) (FrameKind, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 {
		return 0, nil, fmt.Errorf("frame length is zero, missing kind byte")
	}
	if length > maxFrameBody {
		return 0, nil, fmt.Errorf("frame length %d exceeds maximum %d", length, maxFrameBody)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("reading frame body: %w", err)
	}
	return FrameKind(body[0]), body[1:], nil
}
