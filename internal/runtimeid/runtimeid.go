// Package runtimeid parses and compares canonical runtime identifiers of
// the form "<family>-<major>.<minor>" (optionally with a third, exact
// toolchain-build component), used to match test binaries against the
// runtimes a host can actually execute them with.
package runtimeid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nexustest/engine/internal/enginerr"
)

// Family is the broad kind of Go runtime a test binary was built for.
type Family string

const (
	FamilyGo     Family = "go"
	FamilyGccgo  Family = "gccgo"
	FamilyTinyGo Family = "tinygo"
	FamilyAny    Family = "any"
)

// Version is a dotted version with up to three components. A negative
// component means "unspecified" and is ignored by component-wise
// comparisons.
type Version struct {
	Major int
	Minor int
	Patch int // -1 when this is a two-component (language) version
}

func (v Version) String() string {
	if v.Patch < 0 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsZero reports whether v is the zero version (matches anything).
func (v Version) IsZero() bool { return v.Major == 0 && v.Minor == 0 && v.Patch <= 0 }

// RuntimeId is the canonical, comparable runtime tag.
type RuntimeId struct {
	Family Family
	// Language is the two-component "go" directive version (e.g. 1.24 for
	// go.mod's "go 1.24").
	Language Version
	// Toolchain is the three-component exact build version (e.g. 1.24.4 for
	// `go version`'s go1.24.4).
	Toolchain Version
}

// toolchainTable maps a language version's major to the toolchain version it
// normally ships with. Only the "go" family carries a remap table; gccgo and
// tinygo pass versions through unchanged.
var toolchainTable = map[int]Version{
	1: {Major: 1, Minor: 0, Patch: 0},
}

// Parse accepts three input shapes: a bare family ("go"), a v-prefixed
// version ("v1.24"), or a hyphenated tag ("go-1.24" or "go-1.24.4").
func Parse(s string) (RuntimeId, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RuntimeId{}, enginerr.New(enginerr.KindUnsupportedRuntime, "empty runtime identifier")
	}

	if strings.HasPrefix(s, "v") && !strings.Contains(s, "-") {
		return parseVersionOnly(FamilyAny, s[1:])
	}

	if !strings.Contains(s, "-") {
		return parseFamilyOnly(s)
	}

	idx := strings.Index(s, "-")
	family := Family(s[:idx])
	rest := s[idx+1:]
	rest = strings.TrimPrefix(rest, "v")
	return parseVersionOnly(family, rest)
}

func parseFamilyOnly(s string) (RuntimeId, error) {
	family := Family(s)
	if !validFamily(family) {
		return RuntimeId{}, enginerr.New(enginerr.KindUnsupportedRuntime, fmt.Sprintf("unknown runtime family %q", s))
	}
	return RuntimeId{Family: family}, nil
}

func parseVersionOnly(family Family, versionPart string) (RuntimeId, error) {
	if family != FamilyAny && !validFamily(family) {
		return RuntimeId{}, enginerr.New(enginerr.KindUnsupportedRuntime, fmt.Sprintf("unknown runtime family %q", family))
	}

	parts := strings.Split(versionPart, ".")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return RuntimeId{}, enginerr.Wrap(enginerr.KindUnsupportedRuntime, fmt.Sprintf("invalid version %q", versionPart), err)
		}
		nums = append(nums, n)
	}

	switch len(nums) {
	case 2:
		// Two components is a language (framework) version only; no exact
		// toolchain build is known, so Toolchain stays the zero/any-version
		// value and is skipped entirely by Supports. Callers that want the
		// family's documented default build use DefaultToolchain.
		lang := Version{Major: nums[0], Minor: nums[1], Patch: -1}
		return RuntimeId{Family: family, Language: lang}, nil
	case 3:
		tool := Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}
		lang := Version{Major: nums[0], Minor: nums[1], Patch: -1}
		return RuntimeId{Family: family, Language: lang, Toolchain: tool}, nil
	default:
		return RuntimeId{}, enginerr.New(enginerr.KindUnsupportedRuntime, fmt.Sprintf("version %q must have 2 or 3 components", versionPart))
	}
}

// DefaultToolchain returns the documented default toolchain build for a
// language version. gccgo and tinygo pass the language version through
// unchanged; only "go" consults toolchainTable.
func DefaultToolchain(family Family, lang Version) Version {
	if family != FamilyGo {
		return Version{Major: lang.Major, Minor: lang.Minor, Patch: 0}
	}
	if base, ok := toolchainTable[lang.Major]; ok {
		return Version{Major: lang.Major, Minor: lang.Minor, Patch: base.Patch}
	}
	return Version{Major: lang.Major, Minor: lang.Minor, Patch: 0}
}

func validFamily(f Family) bool {
	switch f {
	case FamilyGo, FamilyGccgo, FamilyTinyGo, FamilyAny:
		return true
	}
	return false
}

// String renders the canonical form so that Parse(id.String()) == id
// round-trips: a three-component tag when a Toolchain build is known, a
// two-component tag when only the language version is known, or the bare
// family name when neither is set.
func (r RuntimeId) String() string {
	if !r.Toolchain.IsZero() {
		return fmt.Sprintf("%s-%d.%d.%d", r.Family, r.Toolchain.Major, r.Toolchain.Minor, r.Toolchain.Patch)
	}
	if !r.Language.IsZero() {
		return fmt.Sprintf("%s-%d.%d", r.Family, r.Language.Major, r.Language.Minor)
	}
	return string(r.Family)
}

func familyMatches(a, b Family) bool {
	return a == b || a == FamilyAny || b == FamilyAny
}

func versionComponentSupports(a, b int) bool {
	if a < 0 || b < 0 {
		return true
	}
	return a >= b
}

// Supports reports whether a host advertising RuntimeId a can run a test
// binary declaring RuntimeId b. It is reflexive but neither symmetric nor
// antisymmetric.
func (a RuntimeId) Supports(b RuntimeId) bool {
	if !familyMatches(a.Family, b.Family) {
		return false
	}

	if !(a.Language.IsZero() || b.Language.IsZero()) {
		if !versionComponentSupports(a.Language.Major, b.Language.Major) {
			return false
		}
		if a.Language.Major == b.Language.Major && !versionComponentSupports(a.Language.Minor, b.Language.Minor) {
			return false
		}
	}

	// Toolchain versions must match component-wise, ignoring components
	// that are negative (unspecified) on either side. An any-version
	// RuntimeId on either side (the zero Toolchain) skips this check
	// entirely, the same shortcut the language version gets.
	if !(a.Toolchain.IsZero() || b.Toolchain.IsZero()) {
		if a.Toolchain.Major >= 0 && b.Toolchain.Major >= 0 && a.Toolchain.Major != b.Toolchain.Major {
			return false
		}
		if a.Toolchain.Minor >= 0 && b.Toolchain.Minor >= 0 && a.Toolchain.Minor != b.Toolchain.Minor {
			return false
		}
		if a.Toolchain.Patch >= 0 && b.Toolchain.Patch >= 0 && a.Toolchain.Patch != b.Toolchain.Patch {
			return false
		}
	}

	return true
}
