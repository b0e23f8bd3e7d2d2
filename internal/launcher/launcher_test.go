package launcher

import (
	"testing"

	"github.com/google/uuid"

	"github.com/nexustest/engine/internal/testpkg"
)

func matchingLaunchers(settings map[string]string) []string {
	var names []string
	for _, l := range DefaultLaunchers() {
		if l.CanCreateProcess(nil, settings) {
			names = append(names, l.Info().LauncherName)
		}
	}
	return names
}

func TestGoPreGenericsMatchesOldAndAnyInOrder(t *testing.T) {
	got := matchingLaunchers(map[string]string{testpkg.SettingTargetRuntimeFramework: "go-1.16"})
	want := []string{"Go116Launcher", "AnyLauncher"}
	if !equal(got, want) {
		t.Fatalf("matches = %v, want %v", got, want)
	}
}

func TestGoPostGenericsMatchesOnlyNewAndAny(t *testing.T) {
	got := matchingLaunchers(map[string]string{testpkg.SettingTargetRuntimeFramework: "go-1.24"})
	want := []string{"Go118Launcher", "AnyLauncher"}
	if !equal(got, want) {
		t.Fatalf("matches = %v, want %v", got, want)
	}
}

func TestGccgoMatchesOnlyGccgoAndAny(t *testing.T) {
	got := matchingLaunchers(map[string]string{testpkg.SettingTargetRuntimeFramework: "gccgo-1.21"})
	want := []string{"GccgoLauncher", "AnyLauncher"}
	if !equal(got, want) {
		t.Fatalf("matches = %v, want %v", got, want)
	}
}

func TestNoDeclaredRuntimeMatchesOnlyAny(t *testing.T) {
	got := matchingLaunchers(map[string]string{})
	want := []string{"AnyLauncher"}
	if !equal(got, want) {
		t.Fatalf("matches = %v, want %v", got, want)
	}
}

func TestCreateProcessBuildsExpectedCommandLine(t *testing.T) {
	agentID := uuid.New()
	settings := map[string]string{
		testpkg.SettingInternalTraceLevel: "2",
		testpkg.SettingDebugAgent:         "true",
		testpkg.SettingWorkDirectory:      "/work/dir",
	}

	l := &Go118Launcher{}
	cmd, err := l.CreateProcess(agentID, "tcp://127.0.0.1:9000", nil, settings)
	if err != nil {
		t.Fatalf("CreateProcess: %v", err)
	}

	args := cmd.Args[1:]
	if len(args) != 6 {
		t.Fatalf("args = %v, want 6 elements", args)
	}
	if args[0] != agentID.String() || args[1] != "tcp://127.0.0.1:9000" {
		t.Fatalf("args[0:2] = %v", args[:2])
	}
	if args[3] != "--trace=2" || args[4] != "--debug-agent" || args[5] != "--work=/work/dir" {
		t.Fatalf("args[3:] = %v", args[3:])
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
