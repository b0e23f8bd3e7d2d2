package agency

import (
	"context"
	"net"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nexustest/engine/internal/enginerr"
	"github.com/nexustest/engine/internal/launcher"
	"github.com/nexustest/engine/internal/telemetry"
	"github.com/nexustest/engine/internal/testpkg"
	"github.com/nexustest/engine/internal/transport"
)

func nopTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()
	tel, err := telemetry.New(telemetry.LevelOff, nil)
	if err != nil {
		t.Fatalf("telemetry.New: %v", err)
	}
	return tel
}

// spawnArgs is what CreateProcess observed: the real fields GetAgent
// generated, which the test needs to drive the wire protocol as the
// worker would.
type spawnArgs struct {
	agentID   uuid.UUID
	agencyURL string
}

// sleepCommand returns a harmless, killable placeholder process — the test
// drives the wire protocol itself by dialing the agency URL the fake
// launcher observed, independent of what this process actually does.
func sleepCommand() *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("cmd", "/C", "ping", "-n", "100", "127.0.0.1")
	}
	return exec.Command("sleep", "100")
}

// fakeLauncher always accepts and hands back a long-lived placeholder
// process, reporting the agent id and agency URL GetAgent generated so the
// test can dial in and speak the handshake/dispatch protocol on the
// worker's behalf.
type fakeLauncher struct {
	spawned   chan spawnArgs
	createErr error
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{spawned: make(chan spawnArgs, 1)}
}

func (f *fakeLauncher) Info() launcher.AgentInfo {
	return launcher.AgentInfo{LauncherName: "fake", AgentKind: launcher.LocalProcess}
}

func (f *fakeLauncher) CanCreateProcess(*testpkg.TestPackage, map[string]string) bool { return true }

func (f *fakeLauncher) CreateProcess(agentID uuid.UUID, agencyURL string, _ *testpkg.TestPackage, _ map[string]string) (*exec.Cmd, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.spawned <- spawnArgs{agentID: agentID, agencyURL: agencyURL}
	return sleepCommand(), nil
}

// workerHandshake connects to the agency's listener and completes the
// AgentStarted handshake on the simulated worker's behalf.
func workerHandshake(t *testing.T, args spawnArgs) *transport.Conn {
	t.Helper()
	addr := args.agencyURL[len("tcp://"):]

	var nc net.Conn
	var err error
	for i := 0; i < 50; i++ {
		nc, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}

	conn := transport.NewConn(nc)
	if err := conn.SendCommand(transport.Command{Name: "AgentStarted", Args: []string{args.agentID.String()}}); err != nil {
		t.Fatalf("sending handshake: %v", err)
	}
	_, result, err := conn.ReadConversation()
	if err != nil || !result.OK {
		t.Fatalf("handshake ack = %+v, err = %v", result, err)
	}
	return conn
}

func TestGetAgentCompletesHandshakeAndReachesReady(t *testing.T) {
	fl := newFakeLauncher()
	a := New([]launcher.Launcher{fl}, nopTelemetry(t))

	resultCh := make(chan *AgentRecord, 1)
	errCh := make(chan error, 1)
	go func() {
		rec, err := a.GetAgent(context.Background(), &testpkg.TestPackage{Path: "pkg"}, nil)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- rec
	}()

	args := <-fl.spawned
	workerConn := workerHandshake(t, args)
	defer workerConn.Close()

	select {
	case rec := <-resultCh:
		if rec.Status() != StatusReady {
			t.Fatalf("status = %v, want Ready", rec.Status())
		}
		if rec.ID != args.agentID {
			t.Fatalf("record ID = %v, want %v", rec.ID, args.agentID)
		}
	case err := <-errCh:
		t.Fatalf("GetAgent failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("GetAgent did not complete")
	}
}

func TestGetAgentNoLauncherFails(t *testing.T) {
	a := New(nil, nopTelemetry(t))
	_, err := a.GetAgent(context.Background(), &testpkg.TestPackage{Path: "pkg"}, nil)
	if kind, ok := enginerr.KindOf(err); !ok || kind != enginerr.KindNoSuitableAgent {
		t.Fatalf("err = %v, want NoSuitableAgent", err)
	}
}

func TestGetAgentLaunchFailurePropagatesCreateError(t *testing.T) {
	fl := newFakeLauncher()
	fl.createErr = enginerr.New(enginerr.KindAgentLaunchFailed, "boom")
	a := New([]launcher.Launcher{fl}, nopTelemetry(t))

	_, err := a.GetAgent(context.Background(), &testpkg.TestPackage{Path: "pkg"}, nil)
	if kind, ok := enginerr.KindOf(err); !ok || kind != enginerr.KindAgentLaunchFailed {
		t.Fatalf("err = %v, want AgentLaunchFailed", err)
	}
}

func TestGetAgentHandshakeTimeout(t *testing.T) {
	fl := newFakeLauncher()
	a := New([]launcher.Launcher{fl}, nopTelemetry(t), WithHandshakeTimeout(50*time.Millisecond))

	_, err := a.GetAgent(context.Background(), &testpkg.TestPackage{Path: "pkg"}, nil)
	if kind, ok := enginerr.KindOf(err); !ok || kind != enginerr.KindAgentLaunchFailed {
		t.Fatalf("err = %v, want AgentLaunchFailed on handshake timeout", err)
	}
	<-fl.spawned // drain so CreateProcess's send doesn't block process cleanup
}

func TestDispatchReachesWorkerAndReturnsToReady(t *testing.T) {
	fl := newFakeLauncher()
	a := New([]launcher.Launcher{fl}, nopTelemetry(t))

	resultCh := make(chan *AgentRecord, 1)
	go func() {
		rec, err := a.GetAgent(context.Background(), &testpkg.TestPackage{Path: "pkg"}, nil)
		if err != nil {
			t.Errorf("GetAgent: %v", err)
			return
		}
		resultCh <- rec
	}()

	args := <-fl.spawned
	workerConn := workerHandshake(t, args)
	defer workerConn.Close()

	rec := <-resultCh
	defer a.ReleaseAgent(rec)

	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		cmd, _, err := workerConn.ReadCommand()
		if err != nil {
			return
		}
		if cmd.Name == "CountTestCases" {
			_ = workerConn.SendCommandResult(transport.CommandResult{OK: true, Payload: []byte("3")})
		}
	}()

	_, result, err := a.Dispatch(context.Background(), rec, transport.Command{Name: "CountTestCases"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !result.OK || string(result.Payload) != "3" {
		t.Fatalf("result = %+v, want OK payload 3", result)
	}
	if rec.Status() != StatusReady {
		t.Fatalf("status after dispatch = %v, want Ready", rec.Status())
	}
	<-serveDone
}

func TestDispatchReportsAgentCrashedAfterProcessExits(t *testing.T) {
	fl := newFakeLauncher()
	a := New([]launcher.Launcher{fl}, nopTelemetry(t))

	resultCh := make(chan *AgentRecord, 1)
	go func() {
		rec, err := a.GetAgent(context.Background(), &testpkg.TestPackage{Path: "pkg"}, nil)
		if err != nil {
			t.Errorf("GetAgent: %v", err)
			return
		}
		resultCh <- rec
	}()

	args := <-fl.spawned
	workerConn := workerHandshake(t, args)

	rec := <-resultCh

	// Simulate a crash: close the worker's side of the connection and kill
	// the placeholder process without going through ReleaseAgent, then wait
	// for the Agency's watch goroutine to observe the exit.
	workerConn.Close()
	if rec.cmd.Process != nil {
		_ = rec.cmd.Process.Kill()
	}
	for i := 0; i < 200 && rec.Status() != StatusDead; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if rec.Status() != StatusDead {
		t.Fatal("watch goroutine never observed the crash")
	}

	_, _, err := a.Dispatch(context.Background(), rec, transport.Command{Name: "CountTestCases"})
	if kind, ok := enginerr.KindOf(err); !ok || kind != enginerr.KindAgentCrashed {
		t.Fatalf("err = %v, want AgentCrashed", err)
	}
}

func TestKillTerminatesImmediatelyWithoutWaitingForReleaseTimeout(t *testing.T) {
	fl := newFakeLauncher()
	a := New([]launcher.Launcher{fl}, nopTelemetry(t), WithReleaseTimeout(10*time.Second))

	resultCh := make(chan *AgentRecord, 1)
	go func() {
		rec, err := a.GetAgent(context.Background(), &testpkg.TestPackage{Path: "pkg"}, nil)
		if err != nil {
			t.Errorf("GetAgent: %v", err)
			return
		}
		resultCh <- rec
	}()

	args := <-fl.spawned
	workerConn := workerHandshake(t, args)
	defer workerConn.Close()

	rec := <-resultCh

	start := time.Now()
	if err := a.Kill(rec); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Kill took %v, want well under the configured 10s release timeout — force-stop must not wait out a cooperative grace period", elapsed)
	}
	if rec.Status() != StatusDead {
		t.Fatalf("status after Kill = %v, want Dead", rec.Status())
	}
}
