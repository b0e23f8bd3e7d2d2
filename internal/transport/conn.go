package transport

import (
	"fmt"
	"net"
	"sync"
)

// Conn wraps a net.Conn with the frame codec and enforces single-outstanding
// command semantics: SendCommand blocks until any previously issued command
// on this connection has completed.
type Conn struct {
	nc net.Conn

	writeMu sync.Mutex
	cmdMu   sync.Mutex
}

// NewConn wraps an already-established connection. The agency and the
// worker use a TCP loopback connection.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }

func (c *Conn) writeFrame(kind FrameKind, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteFrame(c.nc, kind, payload)
}

// SendCommand writes a Command frame. Callers must not call SendCommand
// again on the same Conn until the matching CommandResult has been read via
// ReadConversation, which is enforced by cmdMu.
func (c *Conn) SendCommand(cmd Command) error {
	c.cmdMu.Lock()
	err := c.writeFrame(KindCommand, EncodeCommand(cmd))
	if err != nil {
		c.cmdMu.Unlock()
	}
	return err
}

// ReadConversation reads frames until the CommandResult frame for the
// in-flight command arrives, collecting any Events emitted in between in
// worker-emission order. It releases the command lock taken by SendCommand.
func (c *Conn) ReadConversation() ([]Event, CommandResult, error) {
	defer c.cmdMu.Unlock()

	var events []Event
	for {
		kind, payload, err := ReadFrame(c.nc)
		if err != nil {
			return events, CommandResult{}, err
		}
		switch kind {
		case KindEvent:
			ev, err := DecodeEvent(payload)
			if err != nil {
				return events, CommandResult{}, fmt.Errorf("decoding event: %w", err)
			}
			events = append(events, ev)
		case KindCommandResult:
			res, err := DecodeCommandResult(payload)
			if err != nil {
				return events, CommandResult{}, fmt.Errorf("decoding command result: %w", err)
			}
			return events, res, nil
		default:
			return events, CommandResult{}, fmt.Errorf("unexpected frame kind %s while awaiting command result", kind)
		}
	}
}

// SendStop writes a Stop frame, requesting the worker shut down gracefully.
func (c *Conn) SendStop() error {
	return c.writeFrame(KindStop, nil)
}

// SendEvent writes an Event frame; used by the worker side, which is free
// to emit events without holding the command lock (only the controller
// side serializes via SendCommand/ReadConversation).
func (c *Conn) SendEvent(e Event) error {
	return c.writeFrame(KindEvent, EncodeEvent(e))
}

// SendCommandResult writes a CommandResult frame; used by the worker side
// to reply to the command it just processed.
func (c *Conn) SendCommandResult(r CommandResult) error {
	return c.writeFrame(KindCommandResult, EncodeCommandResult(r))
}

// ReadCommand reads the next Command frame; used by the worker side's
// dispatch loop. Returns an error if a non-Command frame arrives, except for
// Stop, which callers should check for to end the loop gracefully.
func (c *Conn) ReadCommand() (Command, bool, error) {
	kind, payload, err := ReadFrame(c.nc)
	if err != nil {
		return Command{}, false, err
	}
	if kind == KindStop {
		return Command{}, true, nil
	}
	if kind != KindCommand {
		return Command{}, false, fmt.Errorf("unexpected frame kind %s while awaiting a command", kind)
	}
	cmd, err := DecodeCommand(payload)
	return cmd, false, err
}
