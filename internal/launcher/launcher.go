// Package launcher builds the unstarted worker process for a TestPackage:
// each launcher answers whether it can host a package's declared runtime,
// and the agency picks the first one in declaration order that says yes.
package launcher

import (
	"fmt"
	"os/exec"

	"github.com/google/uuid"

	"github.com/nexustest/engine/internal/runtimeid"
	"github.com/nexustest/engine/internal/testpkg"
)

// AgentKind distinguishes a worker that runs in its own OS process from one
// that would run in-process with the host (reserved for future use; every
// built-in launcher here produces LocalProcess agents).
type AgentKind int

const (
	LocalProcess AgentKind = iota
	InProcess
)

// AgentInfo is what a launcher advertises about the kind of agent it builds.
type AgentInfo struct {
	LauncherName string
	AgentKind    AgentKind
}

// Launcher knows how to host one class of test binary.
type Launcher interface {
	Info() AgentInfo
	CanCreateProcess(pkg *testpkg.TestPackage, settings map[string]string) bool
	CreateProcess(agentID uuid.UUID, agencyURL string, pkg *testpkg.TestPackage, settings map[string]string) (*exec.Cmd, error)
}

// workerPath is the worker binary every built-in launcher invokes; overridable
// in tests.
var workerPath = "testworker"

// buildCommandLine assembles the worker command line from package settings:
// <agent-id> <agency-url> --pid=<controller-pid> [--trace=<level>]
// [--debug-agent] [--work=<dir>].
func buildCommandLine(agentID uuid.UUID, agencyURL string, settings map[string]string) *exec.Cmd {
	args := []string{agentID.String(), agencyURL, fmt.Sprintf("--pid=%d", controllerPID())}

	if lvl, ok := settings[testpkg.SettingInternalTraceLevel]; ok && lvl != "" {
		args = append(args, "--trace="+lvl)
	}
	if dbg, ok := settings[testpkg.SettingDebugAgent]; ok && dbg == "true" {
		args = append(args, "--debug-agent")
	}
	if wd, ok := settings[testpkg.SettingWorkDirectory]; ok && wd != "" {
		args = append(args, "--work="+wd)
	}

	cmd := exec.Command(workerPath, args...)
	setProcessGroup(cmd)
	return cmd
}

func runtimeFamily(settings map[string]string) (runtimeid.RuntimeId, bool) {
	raw, ok := settings[testpkg.SettingTargetRuntimeFramework]
	if !ok {
		return runtimeid.RuntimeId{}, false
	}
	id, err := runtimeid.Parse(raw)
	if err != nil {
		return runtimeid.RuntimeId{}, false
	}
	return id, true
}
