// Package testpkg defines TestPackage, the unit of work the engine accepts:
// a request to execute one or more compiled test binaries.
package testpkg

import (
	"github.com/nexustest/engine/internal/enginerr"
)

// Recognized setting names. A TestPackage's Settings map may carry any of
// these; unrecognized keys are preserved but ignored by built-in components.
const (
	SettingTargetRuntimeFramework      = "TargetRuntimeFramework"
	SettingImageTargetFrameworkName    = "ImageTargetFrameworkName"
	SettingImageTestFrameworkReference = "ImageTestFrameworkReference"
	SettingImageRequiresX86            = "ImageRequiresX86"
	SettingRunAsX86                    = "RunAsX86"
	SettingDebugTests                  = "DebugTests"
	SettingDebugAgent                  = "DebugAgent"
	SettingInternalTraceLevel          = "InternalTraceLevel"
	SettingLoadUserProfile             = "LoadUserProfile"
	SettingWorkDirectory               = "WorkDirectory"
	SettingSkipNonTestAssemblies       = "SkipNonTestAssemblies"
)

// TestPackage is either a leaf (Path set, no SubPackages) or an aggregate
// (SubPackages set, no Path); never both, never neither.
type TestPackage struct {
	ID          string
	Path        string
	SubPackages []*TestPackage
	Settings    map[string]string
}

// IsLeaf reports whether p names a single test binary directly.
func (p *TestPackage) IsLeaf() bool { return p.Path != "" }

// IsAggregate reports whether p is a grouping of sub-packages.
func (p *TestPackage) IsAggregate() bool { return len(p.SubPackages) > 0 }

// Validate enforces the leaf-xor-aggregate invariant, recursively.
func (p *TestPackage) Validate() error {
	if p.IsLeaf() == p.IsAggregate() {
		return enginerr.New(enginerr.KindBadBinary, "test package "+p.ID+" must set exactly one of Path or SubPackages")
	}
	for _, sub := range p.SubPackages {
		if err := sub.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Setting looks up name in p.Settings, falling back to inherited when p does
// not override it. Settings inherit from parent to child unless overridden,
// so callers walking a package tree pass each level's own EffectiveSettings
// result down as the next level's inherited map.
func (p *TestPackage) Setting(name string, inherited map[string]string) (string, bool) {
	if v, ok := p.Settings[name]; ok {
		return v, true
	}
	v, ok := inherited[name]
	return v, ok
}

// EffectiveSettings merges inherited settings with this package's own
// overrides, for passing down to SubPackages.
func (p *TestPackage) EffectiveSettings(inherited map[string]string) map[string]string {
	out := make(map[string]string, len(inherited)+len(p.Settings))
	for k, v := range inherited {
		out[k] = v
	}
	for k, v := range p.Settings {
		out[k] = v
	}
	return out
}
