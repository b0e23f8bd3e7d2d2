// Package agency implements the controller-side component that selects a
// launcher for a test package, spawns its worker process, tracks the
// resulting agent by id, and reclaims it when the caller is done.
package agency

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexustest/engine/internal/enginerr"
	"github.com/nexustest/engine/internal/launcher"
	"github.com/nexustest/engine/internal/telemetry"
	"github.com/nexustest/engine/internal/testpkg"
	"github.com/nexustest/engine/internal/transport"
)

// Agency owns every AgentRecord for the lifetime of the engine. Nothing
// outside this package ever touches a worker process or its connection
// directly — that ownership is exclusive, mirrored by the unexported fields
// on AgentRecord.
type Agency struct {
	launchers []launcher.Launcher
	telemetry *telemetry.Telemetry

	handshakeTimeout time.Duration
	releaseTimeout   time.Duration

	mu      sync.Mutex
	records map[uuid.UUID]*AgentRecord
}

// Option configures an Agency at construction time.
type Option func(*Agency)

// WithHandshakeTimeout overrides the default 30s bound on waiting for the
// worker's AgentStarted handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(a *Agency) { a.handshakeTimeout = d }
}

// WithReleaseTimeout overrides the default bound on waiting for a released
// worker to exit gracefully before it is killed.
func WithReleaseTimeout(d time.Duration) Option {
	return func(a *Agency) { a.releaseTimeout = d }
}

// New builds an Agency that selects among launchers in the given order —
// the first one whose CanCreateProcess accepts a package wins.
func New(launchers []launcher.Launcher, tel *telemetry.Telemetry, opts ...Option) *Agency {
	a := &Agency{
		launchers:        launchers,
		telemetry:        tel,
		handshakeTimeout: 30 * time.Second,
		releaseTimeout:   10 * time.Second,
		records:          make(map[uuid.UUID]*AgentRecord),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetAgent selects a launcher for pkg, spawns its worker, and blocks until
// either the worker completes its AgentStarted handshake or the handshake
// timeout elapses. On any failure the record (if allocated) is left Dead
// and the started process, if any, is killed.
func (a *Agency) GetAgent(ctx context.Context, pkg *testpkg.TestPackage, settings map[string]string) (*AgentRecord, error) {
	ctx, span := a.telemetry.StartSpan(ctx, "engine.agency.get_agent")
	defer span.End()

	lnch, ok := a.selectLauncher(pkg, settings)
	if !ok {
		return nil, enginerr.New(enginerr.KindNoSuitableAgent, "no launcher accepts this test package")
	}

	rec := &AgentRecord{
		ID:        uuid.New(),
		status:    StatusLaunching,
		createdAt: time.Now(),
	}
	a.telemetry.Log.Info("spawning agent",
		zap.String("agent_id", rec.ID.String()),
		zap.String("launcher", lnch.Info().LauncherName))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		rec.status = StatusDead
		return nil, enginerr.Wrap(enginerr.KindAgentLaunchFailed, "starting agency listener", err)
	}
	defer ln.Close()

	agencyURL := "tcp://" + ln.Addr().String()
	cmd, err := lnch.CreateProcess(rec.ID, agencyURL, pkg, settings)
	if err != nil {
		rec.status = StatusDead
		return nil, enginerr.Wrap(enginerr.KindAgentLaunchFailed, "building worker process", err)
	}

	if err := cmd.Start(); err != nil {
		rec.status = StatusDead
		return nil, enginerr.Wrap(enginerr.KindAgentLaunchFailed, "starting worker process", err)
	}
	rec.cmd = cmd

	conn, err := a.awaitHandshake(ctx, ln, rec.ID)
	if err != nil {
		rec.status = StatusDead
		_ = killProcess(cmd)
		return nil, err
	}
	rec.conn = conn
	rec.status = StatusReady

	a.mu.Lock()
	a.records[rec.ID] = rec
	a.mu.Unlock()

	go a.watch(rec)

	return rec, nil
}

func (a *Agency) selectLauncher(pkg *testpkg.TestPackage, settings map[string]string) (launcher.Launcher, bool) {
	for _, l := range a.launchers {
		if l.CanCreateProcess(pkg, settings) {
			return l, true
		}
	}
	return nil, false
}

// awaitHandshake accepts the worker's single connection and consumes its
// AgentStarted command, bounded by the configured handshake timeout.
func (a *Agency) awaitHandshake(ctx context.Context, ln net.Listener, agentID uuid.UUID) (*transport.Conn, error) {
	type accepted struct {
		nc  net.Conn
		err error
	}
	acceptCh := make(chan accepted, 1)
	go func() {
		nc, err := ln.Accept()
		acceptCh <- accepted{nc, err}
	}()

	deadline := time.NewTimer(a.handshakeTimeout)
	defer deadline.Stop()

	var nc net.Conn
	select {
	case res := <-acceptCh:
		if res.err != nil {
			return nil, enginerr.Wrap(enginerr.KindAgentLaunchFailed, "accepting worker connection", res.err)
		}
		nc = res.nc
	case <-deadline.C:
		return nil, enginerr.New(enginerr.KindAgentLaunchFailed, "timed out waiting for worker to connect")
	case <-ctx.Done():
		return nil, enginerr.Wrap(enginerr.KindAgentLaunchFailed, "spawn canceled", ctx.Err())
	}

	conn := transport.NewConn(nc)
	cmd, stop, err := conn.ReadCommand()
	if err != nil || stop {
		conn.Close()
		return nil, enginerr.New(enginerr.KindAgentLaunchFailed, "worker did not complete handshake")
	}
	if cmd.Name != "AgentStarted" || len(cmd.Args) == 0 || cmd.Args[0] != agentID.String() {
		conn.Close()
		return nil, enginerr.New(enginerr.KindAgentLaunchFailed, "unexpected handshake: "+cmd.Name)
	}
	if err := conn.SendCommandResult(transport.CommandResult{OK: true}); err != nil {
		conn.Close()
		return nil, enginerr.Wrap(enginerr.KindAgentLaunchFailed, "acknowledging handshake", err)
	}
	return conn, nil
}

// watch blocks on the worker process's exit and reconciles AgentRecord
// state: an exit observed while not Stopping is a crash.
func (a *Agency) watch(rec *AgentRecord) {
	err := rec.cmd.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.status == StatusStopping {
		rec.status = StatusDead
		return
	}
	rec.status = StatusDead
	rec.crashed = true
	rec.exitCode = exitCodeOf(err)
	rec.conn.Close()

	a.telemetry.Log.Warn("agent crashed",
		zap.String("agent_id", rec.ID.String()),
		zap.Int("exit_code", rec.exitCode))
}

// Dispatch forwards cmd to rec over its connection, marking the record
// Running for the duration. A transport failure after the watch goroutine
// has marked the record Dead (the connection closing because the process
// just crashed) is reported as AgentCrashed; any other transport failure is
// reported as DriverError.
func (a *Agency) Dispatch(ctx context.Context, rec *AgentRecord, cmd transport.Command) ([]transport.Event, transport.CommandResult, error) {
	_, span := a.telemetry.StartSpan(ctx, "engine.agency.dispatch."+cmd.Name)
	defer span.End()

	rec.mu.Lock()
	if rec.status != StatusReady {
		status := rec.status
		rec.mu.Unlock()
		return nil, transport.CommandResult{}, enginerr.New(enginerr.KindAgentCrashed, fmt.Sprintf("agent is %s, not Ready", status))
	}
	rec.status = StatusRunning
	rec.mu.Unlock()

	if err := rec.conn.SendCommand(cmd); err != nil {
		return nil, transport.CommandResult{}, a.crashedOrWrap(rec, err)
	}
	events, result, err := rec.conn.ReadConversation()
	if err != nil {
		return events, result, a.crashedOrWrap(rec, err)
	}

	rec.mu.Lock()
	if rec.status == StatusRunning {
		rec.status = StatusReady
	}
	rec.mu.Unlock()

	return events, result, nil
}

func (a *Agency) crashedOrWrap(rec *AgentRecord, err error) error {
	rec.mu.Lock()
	dead := rec.status == StatusDead
	rec.mu.Unlock()
	if dead {
		return enginerr.Wrap(enginerr.KindAgentCrashed, "worker process exited during dispatch", err)
	}
	return enginerr.Wrap(enginerr.KindDriverError, "transport failure during dispatch", err)
}

// ReleaseAgent asks rec to stop gracefully and waits for its process to
// exit, killing the process group if it does not exit within the configured
// release timeout.
func (a *Agency) ReleaseAgent(rec *AgentRecord) error {
	rec.mu.Lock()
	if rec.status == StatusDead {
		rec.mu.Unlock()
		a.forget(rec.ID)
		return nil
	}
	rec.status = StatusStopping
	conn := rec.conn
	rec.mu.Unlock()

	_ = conn.SendStop()

	exited := awaitDead(rec)

	select {
	case <-exited:
	case <-time.After(a.releaseTimeout):
		a.telemetry.Log.Warn("release timed out, killing agent", zap.String("agent_id", rec.ID.String()))
		_ = killProcess(rec.cmd)
		<-exited
	}

	conn.Close()
	a.forget(rec.ID)
	return nil
}

// Kill is the Agency-level force-stop path: it terminates rec's worker
// process group immediately, with no cooperative Stop frame and no grace
// period. This is what StopRun(true) calls — "force" means the process
// dies now, not after a best-effort wait.
func (a *Agency) Kill(rec *AgentRecord) error {
	rec.mu.Lock()
	if rec.status == StatusDead {
		rec.mu.Unlock()
		a.forget(rec.ID)
		return nil
	}
	rec.status = StatusStopping
	conn := rec.conn
	rec.mu.Unlock()

	err := killProcess(rec.cmd)
	<-awaitDead(rec)

	conn.Close()
	a.forget(rec.ID)
	return err
}

// awaitDead returns a channel that closes once rec's watch goroutine has
// observed the worker process exit and set its status to Dead.
func awaitDead(rec *AgentRecord) <-chan struct{} {
	exited := make(chan struct{})
	go func() {
		rec.mu.Lock()
		for rec.status != StatusDead {
			rec.mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			rec.mu.Lock()
		}
		rec.mu.Unlock()
		close(exited)
	}()
	return exited
}

func (a *Agency) forget(id uuid.UUID) {
	a.mu.Lock()
	delete(a.records, id)
	a.mu.Unlock()
}

func killProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := launcher.KillProcessGroup(cmd.Process.Pid, syscall.SIGKILL); err != nil {
		// The worker does not lead its own process group (e.g. a launcher
		// that did not set one up): kill the single process instead.
		return cmd.Process.Kill()
	}
	return nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
