package launcher

import (
	"os/exec"

	"github.com/google/uuid"

	"github.com/nexustest/engine/internal/runtimeid"
	"github.com/nexustest/engine/internal/testpkg"
)

// DefaultLaunchers returns the built-in launcher set in pinned declaration
// order: Go116Launcher, Go118Launcher, GccgoLauncher, TinyGoLauncher,
// AnyLauncher. Callers that select by first-match must use this order.
func DefaultLaunchers() []Launcher {
	return []Launcher{
		&Go116Launcher{},
		&Go118Launcher{},
		&GccgoLauncher{},
		&TinyGoLauncher{},
		&AnyLauncher{},
	}
}

// Go116Launcher hosts go-family binaries built before generics (language
// version < 1.18), kept for cross-compiling older fixtures.
type Go116Launcher struct{}

func (l *Go116Launcher) Info() AgentInfo {
	return AgentInfo{LauncherName: "Go116Launcher", AgentKind: LocalProcess}
}

func (l *Go116Launcher) CanCreateProcess(pkg *testpkg.TestPackage, settings map[string]string) bool {
	id, ok := runtimeFamily(settings)
	if !ok || id.Family != runtimeid.FamilyGo {
		return false
	}
	return id.Language.Major == 1 && id.Language.Minor < 18
}

func (l *Go116Launcher) CreateProcess(agentID uuid.UUID, agencyURL string, pkg *testpkg.TestPackage, settings map[string]string) (*exec.Cmd, error) {
	return buildCommandLine(agentID, agencyURL, settings), nil
}

// Go118Launcher hosts go-family binaries built with language version >= 1.18.
type Go118Launcher struct{}

func (l *Go118Launcher) Info() AgentInfo {
	return AgentInfo{LauncherName: "Go118Launcher", AgentKind: LocalProcess}
}

func (l *Go118Launcher) CanCreateProcess(pkg *testpkg.TestPackage, settings map[string]string) bool {
	id, ok := runtimeFamily(settings)
	if !ok || id.Family != runtimeid.FamilyGo {
		return false
	}
	return id.Language.Major > 1 || (id.Language.Major == 1 && id.Language.Minor >= 18)
}

func (l *Go118Launcher) CreateProcess(agentID uuid.UUID, agencyURL string, pkg *testpkg.TestPackage, settings map[string]string) (*exec.Cmd, error) {
	return buildCommandLine(agentID, agencyURL, settings), nil
}

// GccgoLauncher hosts binaries built with the gccgo toolchain.
type GccgoLauncher struct{}

func (l *GccgoLauncher) Info() AgentInfo {
	return AgentInfo{LauncherName: "GccgoLauncher", AgentKind: LocalProcess}
}

func (l *GccgoLauncher) CanCreateProcess(pkg *testpkg.TestPackage, settings map[string]string) bool {
	id, ok := runtimeFamily(settings)
	return ok && id.Family == runtimeid.FamilyGccgo
}

func (l *GccgoLauncher) CreateProcess(agentID uuid.UUID, agencyURL string, pkg *testpkg.TestPackage, settings map[string]string) (*exec.Cmd, error) {
	return buildCommandLine(agentID, agencyURL, settings), nil
}

// TinyGoLauncher hosts binaries built with the TinyGo toolchain.
type TinyGoLauncher struct{}

func (l *TinyGoLauncher) Info() AgentInfo {
	return AgentInfo{LauncherName: "TinyGoLauncher", AgentKind: LocalProcess}
}

func (l *TinyGoLauncher) CanCreateProcess(pkg *testpkg.TestPackage, settings map[string]string) bool {
	id, ok := runtimeFamily(settings)
	return ok && id.Family == runtimeid.FamilyTinyGo
}

func (l *TinyGoLauncher) CreateProcess(agentID uuid.UUID, agencyURL string, pkg *testpkg.TestPackage, settings map[string]string) (*exec.Cmd, error) {
	return buildCommandLine(agentID, agencyURL, settings), nil
}

// AnyLauncher accepts every package, including those with no declared
// runtime family. Always evaluated last: every other launcher's
// CanCreateProcess is strictly more specific.
type AnyLauncher struct{}

func (l *AnyLauncher) Info() AgentInfo {
	return AgentInfo{LauncherName: "AnyLauncher", AgentKind: LocalProcess}
}

func (l *AnyLauncher) CanCreateProcess(pkg *testpkg.TestPackage, settings map[string]string) bool {
	return true
}

func (l *AnyLauncher) CreateProcess(agentID uuid.UUID, agencyURL string, pkg *testpkg.TestPackage, settings map[string]string) (*exec.Cmd, error) {
	return buildCommandLine(agentID, agencyURL, settings), nil
}
