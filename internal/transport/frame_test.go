package transport

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, KindEvent, []byte("hello")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	kind, payload, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != KindEvent {
		t.Fatalf("kind = %v, want KindEvent", kind)
	}
	if string(payload) != "hello" {
		t.Fatalf("payload = %q, want hello", payload)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, _, err := ReadFrame(&buf); err == nil {
		t.Fatalf("expected error for oversized frame length")
	}
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	if _, _, err := ReadFrame(&buf); err == nil {
		t.Fatalf("expected error for zero-length frame")
	}
}

func TestMultipleFramesReadInOrder(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, KindEvent, []byte("first"))
	WriteFrame(&buf, KindEvent, []byte("second"))
	WriteFrame(&buf, KindCommandResult, []byte("third"))

	for _, want := range []string{"first", "second", "third"} {
		_, payload, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if string(payload) != want {
			t.Fatalf("payload = %q, want %q", payload, want)
		}
	}
}
