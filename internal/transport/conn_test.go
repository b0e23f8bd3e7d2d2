package transport

import (
	"net"
	"testing"
	"time"
)

func pipeConns(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	return NewConn(client), NewConn(server)
}

func TestConnCommandConversationOrdersEventsBeforeResult(t *testing.T) {
	controller, worker := pipeConns(t)

	go func() {
		cmd, stop, err := worker.ReadCommand()
		if err != nil || stop || cmd.Name != "Run" {
			t.Errorf("worker ReadCommand = %+v, %v, %v", cmd, stop, err)
			return
		}
		worker.SendEvent(Event{Name: "TestStarted", Payload: []byte("A")})
		worker.SendEvent(Event{Name: "TestFinished", Payload: []byte("A")})
		worker.SendCommandResult(CommandResult{OK: true, Payload: []byte("<result/>")})
	}()

	if err := controller.SendCommand(Command{Name: "Run"}); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	events, result, err := controller.ReadConversation()
	if err != nil {
		t.Fatalf("ReadConversation: %v", err)
	}
	if len(events) != 2 || events[0].Name != "TestStarted" || events[1].Name != "TestFinished" {
		t.Fatalf("events = %+v", events)
	}
	if !result.OK || string(result.Payload) != "<result/>" {
		t.Fatalf("result = %+v", result)
	}
}

func TestConnSecondCommandBlocksUntilFirstConversationRead(t *testing.T) {
	controller, worker := pipeConns(t)

	go func() {
		for i := 0; i < 2; i++ {
			cmd, _, err := worker.ReadCommand()
			if err != nil {
				return
			}
			worker.SendCommandResult(CommandResult{OK: true, Payload: []byte(cmd.Name)})
		}
	}()

	if err := controller.SendCommand(Command{Name: "First"}); err != nil {
		t.Fatalf("SendCommand First: %v", err)
	}

	done := make(chan struct{})
	go func() {
		controller.SendCommand(Command{Name: "Second"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("second SendCommand returned before first conversation was read")
	case <-time.After(50 * time.Millisecond):
	}

	if _, _, err := controller.ReadConversation(); err != nil {
		t.Fatalf("ReadConversation: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("second SendCommand never unblocked after first conversation was read")
	}
}
