package engine

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexustest/engine/internal/telemetry"
)

// EngineConfig holds every setting needed to construct an Engine. It is
// built in three layers, in order: DefaultConfig, an environment override
// pass, then an optional engine.yaml file.
type EngineConfig struct {
	// ExtensionDir is where Discover scans for *.addins manifests and
	// sidecar plugin manifests at startup.
	ExtensionDir string `yaml:"extension_dir"`

	// HandshakeTimeout bounds how long Agency.GetAgent waits for a worker's
	// AgentStarted handshake.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// ReleaseTimeout bounds how long Agency.ReleaseAgent waits for a
	// released worker to exit before it is killed.
	ReleaseTimeout time.Duration `yaml:"release_timeout"`

	// TraceLevel controls log verbosity and span sampling throughout the
	// engine; mirrors the TestPackage setting InternalTraceLevel.
	TraceLevel telemetry.Level `yaml:"trace_level"`
}

// DefaultConfig returns an EngineConfig with sensible defaults.
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		ExtensionDir:     "./extensions",
		HandshakeTimeout: 30 * time.Second,
		ReleaseTimeout:   10 * time.Second,
		TraceLevel:       telemetry.LevelInfo,
	}
}

// LoadConfig builds an EngineConfig from defaults, then environment
// variables, then an optional YAML file at path (skipped entirely if path
// is empty or does not exist).
func LoadConfig(path string) (*EngineConfig, error) {
	cfg := DefaultConfig()
	cfg.applyEnv()

	if path == "" {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening engine config %s: %w", path, err)
	}
	defer f.Close()

	if err := cfg.applyYAML(f); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EngineConfig) applyEnv() {
	if v := os.Getenv("NEXUSTEST_EXTENSION_DIR"); v != "" {
		c.ExtensionDir = v
	}
	if v := os.Getenv("NEXUSTEST_HANDSHAKE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HandshakeTimeout = d
		}
	}
	if v := os.Getenv("NEXUSTEST_RELEASE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ReleaseTimeout = d
		}
	}
	if v := os.Getenv("NEXUSTEST_TRACE_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TraceLevel = telemetry.Level(n)
		}
	}
}

func (c *EngineConfig) applyYAML(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading engine config: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parsing engine config: %w", err)
	}
	return nil
}

// Validate checks that the configuration can actually build an Engine.
func (c *EngineConfig) Validate() error {
	if c.ExtensionDir == "" {
		return fmt.Errorf("extension_dir must not be empty")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive, got %v", c.HandshakeTimeout)
	}
	if c.ReleaseTimeout <= 0 {
		return fmt.Errorf("release_timeout must be positive, got %v", c.ReleaseTimeout)
	}
	if c.TraceLevel < telemetry.LevelOff || c.TraceLevel > telemetry.LevelDebug {
		return fmt.Errorf("trace_level %d out of range", c.TraceLevel)
	}
	return nil
}

func (c *EngineConfig) String() string {
	return fmt.Sprintf("EngineConfig{extensions=%s, handshake=%v, release=%v, trace=%d}",
		c.ExtensionDir, c.HandshakeTimeout, c.ReleaseTimeout, c.TraceLevel)
}
