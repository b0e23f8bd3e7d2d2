package testpkg

import "testing"

func TestValidateRejectsNeitherLeafNorAggregate(t *testing.T) {
	p := &TestPackage{ID: "empty"}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for a package with neither Path nor SubPackages")
	}
}

func TestValidateRejectsBothLeafAndAggregate(t *testing.T) {
	p := &TestPackage{
		ID:          "both",
		Path:        "/bin/worker.test",
		SubPackages: []*TestPackage{{ID: "child", Path: "/bin/other.test"}},
	}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for a package with both Path and SubPackages")
	}
}

func TestValidateRecursesIntoSubPackages(t *testing.T) {
	p := &TestPackage{
		ID: "root",
		SubPackages: []*TestPackage{
			{ID: "ok", Path: "/bin/a.test"},
			{ID: "bad"},
		},
	}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error from invalid sub-package")
	}
}

func TestSettingInheritsFromParentUnlessOverridden(t *testing.T) {
	parent := &TestPackage{
		ID:       "root",
		Settings: map[string]string{SettingWorkDirectory: "/tmp/root", SettingDebugTests: "false"},
	}
	child := &TestPackage{
		ID:       "child",
		Path:     "/bin/child.test",
		Settings: map[string]string{SettingDebugTests: "true"},
	}

	inherited := parent.EffectiveSettings(nil)

	if v, ok := child.Setting(SettingWorkDirectory, inherited); !ok || v != "/tmp/root" {
		t.Fatalf("WorkDirectory = %q, %v, want inherited /tmp/root", v, ok)
	}
	if v, ok := child.Setting(SettingDebugTests, inherited); !ok || v != "true" {
		t.Fatalf("DebugTests = %q, %v, want overridden true", v, ok)
	}
}
