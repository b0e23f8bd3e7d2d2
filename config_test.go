package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nexustest/engine/internal/telemetry"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig should validate: %v", err)
	}
}

func TestLoadConfigMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ExtensionDir != DefaultConfig().ExtensionDir {
		t.Fatalf("ExtensionDir = %q, want default", cfg.ExtensionDir)
	}
}

func TestLoadConfigYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("extension_dir: /opt/extensions\nhandshake_timeout: 5s\ntrace_level: 3\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ExtensionDir != "/opt/extensions" {
		t.Fatalf("ExtensionDir = %q, want /opt/extensions", cfg.ExtensionDir)
	}
	if cfg.HandshakeTimeout != 5*time.Second {
		t.Fatalf("HandshakeTimeout = %v, want 5s", cfg.HandshakeTimeout)
	}
	if cfg.TraceLevel != telemetry.LevelDebug {
		t.Fatalf("TraceLevel = %v, want LevelDebug", cfg.TraceLevel)
	}
}

func TestLoadConfigEnvOverridesDefaultsButNotYAML(t *testing.T) {
	t.Setenv("NEXUSTEST_EXTENSION_DIR", "/from/env")

	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("handshake_timeout: 7s\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ExtensionDir != "/from/env" {
		t.Fatalf("ExtensionDir = %q, want env override to survive since YAML did not set it", cfg.ExtensionDir)
	}
	if cfg.HandshakeTimeout != 7*time.Second {
		t.Fatalf("HandshakeTimeout = %v, want YAML override 7s", cfg.HandshakeTimeout)
	}
}

func TestValidateRejectsOutOfRangeTraceLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceLevel = telemetry.Level(99)
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject an out-of-range trace level")
	}
}
