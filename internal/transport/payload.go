package transport

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Command is a name plus a positional argument list.
type Command struct {
	Name string
	Args []string
}

// CommandResult carries either a success payload or an error envelope.
type CommandResult struct {
	OK         bool
	Payload    []byte
	ErrKind    string
	ErrMessage string
}

// Event is a fire-and-forget notification emitted by the worker.
type Event struct {
	Name    string
	Payload []byte
}

const (
	fieldCommandName = 1
	fieldCommandArg  = 2

	fieldResultOK         = 1
	fieldResultPayload    = 2
	fieldResultErrKind    = 3
	fieldResultErrMessage = 4

	fieldEventName    = 1
	fieldEventPayload = 2
)

// EncodeCommand serializes c using protobuf wire primitives.
func EncodeCommand(c Command) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldCommandName, protowire.BytesType)
	b = protowire.AppendString(b, c.Name)
	for _, a := range c.Args {
		b = protowire.AppendTag(b, fieldCommandArg, protowire.BytesType)
		b = protowire.AppendString(b, a)
	}
	return b
}

// DecodeCommand parses a Command payload previously built by EncodeCommand.
func DecodeCommand(b []byte) (Command, error) {
	var c Command
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Command{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case fieldCommandName:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Command{}, protowire.ParseError(n)
			}
			c.Name = v
			b = b[n:]
		case fieldCommandArg:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Command{}, protowire.ParseError(n)
			}
			c.Args = append(c.Args, v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Command{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return c, nil
}

// EncodeCommandResult serializes r.
func EncodeCommandResult(r CommandResult) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldResultOK, protowire.VarintType)
	b = protowire.AppendVarint(b, boolVarint(r.OK))
	if len(r.Payload) > 0 {
		b = protowire.AppendTag(b, fieldResultPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Payload)
	}
	if r.ErrKind != "" {
		b = protowire.AppendTag(b, fieldResultErrKind, protowire.BytesType)
		b = protowire.AppendString(b, r.ErrKind)
	}
	if r.ErrMessage != "" {
		b = protowire.AppendTag(b, fieldResultErrMessage, protowire.BytesType)
		b = protowire.AppendString(b, r.ErrMessage)
	}
	return b
}

// DecodeCommandResult parses a CommandResult payload.
func DecodeCommandResult(b []byte) (CommandResult, error) {
	var r CommandResult
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return CommandResult{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case fieldResultOK:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return CommandResult{}, protowire.ParseError(n)
			}
			r.OK = v != 0
			b = b[n:]
		case fieldResultPayload:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return CommandResult{}, protowire.ParseError(n)
			}
			r.Payload = append([]byte(nil), v...)
			b = b[n:]
		case fieldResultErrKind:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return CommandResult{}, protowire.ParseError(n)
			}
			r.ErrKind = v
			b = b[n:]
		case fieldResultErrMessage:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return CommandResult{}, protowire.ParseError(n)
			}
			r.ErrMessage = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return CommandResult{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return r, nil
}

// EncodeEvent serializes e.
func EncodeEvent(e Event) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldEventName, protowire.BytesType)
	b = protowire.AppendString(b, e.Name)
	if len(e.Payload) > 0 {
		b = protowire.AppendTag(b, fieldEventPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Payload)
	}
	return b
}

// DecodeEvent parses an Event payload.
func DecodeEvent(b []byte) (Event, error) {
	var e Event
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Event{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case fieldEventName:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Event{}, protowire.ParseError(n)
			}
			e.Name = v
			b = b[n:]
		case fieldEventPayload:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Event{}, protowire.ParseError(n)
			}
			e.Payload = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Event{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return e, nil
}

func boolVarint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
