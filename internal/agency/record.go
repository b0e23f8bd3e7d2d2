package agency

import (
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nexustest/engine/internal/transport"
)

// Status is an AgentRecord's lifecycle state.
type Status int

const (
	StatusLaunching Status = iota
	StatusReady
	StatusRunning
	StatusStopping
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusLaunching:
		return "Launching"
	case StatusReady:
		return "Ready"
	case StatusRunning:
		return "Running"
	case StatusStopping:
		return "Stopping"
	case StatusDead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// AgentRecord is the Agency's exclusive record of one worker process: its
// identity, its connection, and its place in the Launching -> Ready ->
// Running -> Stopping -> Dead state machine. Every field below status is
// reachable only through Agency methods — callers outside this package only
// ever see ID, Status, and CreatedAt.
type AgentRecord struct {
	ID        uuid.UUID
	createdAt time.Time

	mu       sync.Mutex
	status   Status
	crashed  bool
	exitCode int

	cmd  *exec.Cmd
	conn *transport.Conn
}

// Status returns the record's current lifecycle state.
func (r *AgentRecord) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// CreatedAt returns when this record was allocated by GetAgent.
func (r *AgentRecord) CreatedAt() time.Time { return r.createdAt }

// Crashed reports whether this record's process exited unexpectedly (i.e.
// not as the result of a graceful ReleaseAgent).
func (r *AgentRecord) Crashed() (crashed bool, exitCode int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.crashed, r.exitCode
}
