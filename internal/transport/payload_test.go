package transport

import (
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendUnknownVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	b = protowire.AppendVarint(b, v)
	return b
}

func TestEncodeDecodeCommandRoundTrip(t *testing.T) {
	cmd := Command{Name: "Run", Args: []string{"<filter><test>A</test></filter>", "2"}}
	got, err := DecodeCommand(EncodeCommand(cmd))
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if got.Name != cmd.Name || len(got.Args) != len(cmd.Args) || got.Args[0] != cmd.Args[0] || got.Args[1] != cmd.Args[1] {
		t.Fatalf("got = %+v, want %+v", got, cmd)
	}
}

func TestEncodeDecodeCommandResultSuccess(t *testing.T) {
	r := CommandResult{OK: true, Payload: []byte("<result/>")}
	got, err := DecodeCommandResult(EncodeCommandResult(r))
	if err != nil {
		t.Fatalf("DecodeCommandResult: %v", err)
	}
	if !got.OK || string(got.Payload) != "<result/>" {
		t.Fatalf("got = %+v", got)
	}
}

func TestEncodeDecodeCommandResultError(t *testing.T) {
	r := CommandResult{OK: false, ErrKind: "driver_error", ErrMessage: "boom"}
	got, err := DecodeCommandResult(EncodeCommandResult(r))
	if err != nil {
		t.Fatalf("DecodeCommandResult: %v", err)
	}
	if got.OK || got.ErrKind != "driver_error" || got.ErrMessage != "boom" {
		t.Fatalf("got = %+v", got)
	}
}

func TestEncodeDecodeEventRoundTrip(t *testing.T) {
	e := Event{Name: "TestStarted", Payload: []byte("My.Test")}
	got, err := DecodeEvent(EncodeEvent(e))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if got.Name != e.Name || string(got.Payload) != string(e.Payload) {
		t.Fatalf("got = %+v", got)
	}
}

func TestDecodeCommandIgnoresUnknownFields(t *testing.T) {
	b := EncodeCommand(Command{Name: "Load"})
	b = appendUnknownVarintField(b, 99, 7)
	got, err := DecodeCommand(b)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if got.Name != "Load" {
		t.Fatalf("got.Name = %q", got.Name)
	}
}
