// Package inspector reads a compiled test binary's metadata without
// executing it: target runtime, referenced modules (to locate a test
// framework), and bitness.
package inspector

import (
	"debug/buildinfo"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"fmt"
	"strconv"
	"strings"

	"github.com/nexustest/engine/internal/enginerr"
	"github.com/nexustest/engine/internal/runtimeid"
)

// Bitness is the binary's pointer width.
type Bitness int

const (
	BitnessUnknown Bitness = 0
	Bitness32      Bitness = 32
	Bitness64      Bitness = 64
)

// Report is the structured result of inspecting one test binary.
type Report struct {
	// Path is the binary that was inspected.
	Path string
	// TargetRuntime is the runtime declared by the embedded Go build info.
	TargetRuntime runtimeid.RuntimeId
	// GOOS / GOARCH are read straight from the embedded build settings.
	GOOS, GOARCH string
	// ReferencedModules lists every module dependency recorded in the
	// binary's build info — the Go-native stand-in for "referenced
	// assemblies", used to locate the test framework driver.
	ReferencedModules []string
	// Bitness is the binary's pointer width.
	Bitness Bitness
}

// platforms this engine refuses to host a worker process for: targets that
// cannot run as a local OS process at all, or whose ABI this engine has no
// driver story for.
var rejectedGOOS = map[string]bool{
	"js":     true, // wasm in a browser: no local process to spawn
	"wasip1": true, // wasi: same story, sandboxed runtime not a host process
	"android": true,
	"ios":     true,
}

// HasReference reports whether the report's module list contains modPath,
// case-insensitively, used to locate a test framework by reference name.
func (r Report) HasReference(modPath string) bool {
	for _, m := range r.ReferencedModules {
		if strings.EqualFold(m, modPath) {
			return true
		}
	}
	return false
}

// Inspect reads binary metadata from path without executing it.
func Inspect(path string) (Report, error) {
	info, err := buildinfo.ReadFile(path)
	if err != nil {
		return Report{}, enginerr.Wrap(enginerr.KindBadBinary, fmt.Sprintf("reading build info from %s", path), err)
	}

	goos, goarch := "", ""
	for _, s := range info.Settings {
		switch s.Key {
		case "GOOS":
			goos = s.Value
		case "GOARCH":
			goarch = s.Value
		}
	}
	if goos == "" || goarch == "" {
		return Report{}, enginerr.New(enginerr.KindBadBinary, fmt.Sprintf("%s: build info missing GOOS/GOARCH settings", path))
	}

	if rejectedGOOS[goos] {
		return Report{}, enginerr.New(enginerr.KindUnsupportedPlatform, fmt.Sprintf("%s: target platform %q is not hostable", path, goos))
	}

	lang, err := languageVersion(info.GoVersion)
	if err != nil {
		return Report{}, enginerr.Wrap(enginerr.KindBadBinary, fmt.Sprintf("%s: parsing embedded Go version %q", path, info.GoVersion), err)
	}

	toolchain, err := toolchainVersion(info.GoVersion)
	if err != nil {
		return Report{}, enginerr.Wrap(enginerr.KindBadBinary, fmt.Sprintf("%s: parsing embedded Go version %q", path, info.GoVersion), err)
	}

	modules := make([]string, 0, len(info.Deps))
	for _, d := range info.Deps {
		modules = append(modules, d.Path)
	}

	bitness, err := detectBitness(path, goarch)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Path:   path,
		GOOS:   goos,
		GOARCH: goarch,
		TargetRuntime: runtimeid.RuntimeId{
			Family:    runtimeid.FamilyGo,
			Language:  lang,
			Toolchain: toolchain,
		},
		ReferencedModules: modules,
		Bitness:           bitness,
	}, nil
}

// languageVersion derives the two-component language version from a
// "go1.24.4" style version string.
func languageVersion(goVersion string) (runtimeid.Version, error) {
	major, minor, _, err := splitGoVersion(goVersion)
	if err != nil {
		return runtimeid.Version{}, err
	}
	return runtimeid.Version{Major: major, Minor: minor, Patch: -1}, nil
}

func toolchainVersion(goVersion string) (runtimeid.Version, error) {
	major, minor, patch, err := splitGoVersion(goVersion)
	if err != nil {
		return runtimeid.Version{}, err
	}
	return runtimeid.Version{Major: major, Minor: minor, Patch: patch}, nil
}

func splitGoVersion(goVersion string) (major, minor, patch int, err error) {
	v := strings.TrimPrefix(goVersion, "go")
	// Strip any "beta"/"rc" pre-release suffix; the engine only cares about
	// the numeric release line.
	if idx := strings.IndexAny(v, "abr"); idx > 0 {
		v = v[:idx]
	}
	parts := strings.Split(v, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	nums := make([]int, 3)
	for i := 0; i < 3; i++ {
		n, convErr := strconv.Atoi(parts[i])
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("unrecognized version component %q in %q", parts[i], goVersion)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}

// detectBitness cross-checks the embedded GOARCH against the binary's own
// container format for architectures detectBitness does not recognize by
// name alone.
func detectBitness(path, goarch string) (Bitness, error) {
	switch goarch {
	case "386", "arm", "mips", "mipsle":
		return Bitness32, nil
	case "amd64", "arm64", "mips64", "mips64le", "ppc64", "ppc64le", "riscv64", "s390x":
		return Bitness64, nil
	}

	// Unknown GOARCH string: fall back to the container format's own
	// bitness field.
	if f, err := elf.Open(path); err == nil {
		defer f.Close()
		if f.Class == elf.ELFCLASS32 {
			return Bitness32, nil
		}
		return Bitness64, nil
	}
	if f, err := macho.Open(path); err == nil {
		defer f.Close()
		if f.Magic == macho.Magic32 {
			return Bitness32, nil
		}
		return Bitness64, nil
	}
	if f, err := pe.Open(path); err == nil {
		defer f.Close()
		if f.Machine == pe.IMAGE_FILE_MACHINE_I386 {
			return Bitness32, nil
		}
		return Bitness64, nil
	}

	return BitnessUnknown, enginerr.New(enginerr.KindBadBinary, fmt.Sprintf("%s: unrecognized architecture %q and unreadable container format", path, goarch))
}
