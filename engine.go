// Package engine is the public facade an embedding host uses: it ties the
// Runtime Identifier, Extension Registry, and Agency together behind one
// constructor so a host never has to wire those three components itself.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/nexustest/engine/internal/agency"
	"github.com/nexustest/engine/internal/enginerr"
	"github.com/nexustest/engine/internal/extensions"
	"github.com/nexustest/engine/internal/launcher"
	"github.com/nexustest/engine/internal/runtimeid"
	"github.com/nexustest/engine/internal/telemetry"
	"github.com/nexustest/engine/internal/testpkg"
	"github.com/nexustest/engine/internal/transport"
)

// Engine is the embedding host's single entry point: it owns the extension
// registry and the agency, and exposes the operations a controller needs to
// run a TestPackage end to end.
type Engine struct {
	cfg       *EngineConfig
	telemetry *telemetry.Telemetry
	registry  *extensions.Registry
	agency    *agency.Agency

	// warnings collects non-fatal extension-discovery failures (e.g. an
	// addins wildcard entry that failed to read) surfaced at startup.
	warnings []error
}

// hostFamily reports this process's own runtime family, computed once at
// startup instead of kept as a package-level mutable "current framework"
// singleton.
func hostFamily() extensions.HostFamily {
	switch runtime.Compiler {
	case "gccgo":
		return extensions.HostGccgo
	default:
		return extensions.HostGo
	}
}

// New builds an Engine: it discovers extensions under cfg.ExtensionDir and
// constructs an Agency wired to the default built-in launchers. Discovery
// warnings (from-wildcard manifest read failures) are non-fatal and
// retrievable via Warnings; every other discovery failure is returned here.
func New(cfg *EngineConfig, tp *trace.TracerProvider) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	tel, err := telemetry.New(cfg.TraceLevel, tp)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	registry, warnings, err := extensions.Discover(cfg.ExtensionDir, hostFamily(), tel.Log)
	if err != nil {
		return nil, fmt.Errorf("discovering extensions: %w", err)
	}

	ag := agency.New(
		launcher.DefaultLaunchers(),
		tel,
		agency.WithHandshakeTimeout(cfg.HandshakeTimeout),
		agency.WithReleaseTimeout(cfg.ReleaseTimeout),
	)

	return &Engine{cfg: cfg, telemetry: tel, registry: registry, agency: ag, warnings: warnings}, nil
}

// Warnings returns the non-fatal extension-discovery failures observed at
// startup, combined per the registry's own aggregation policy.
func (e *Engine) Warnings() error {
	return extensions.CombineWarnings(e.warnings)
}

// Registry exposes the discovered extension registry for lookups by path
// or type (e.g. reporters, additional result listeners).
func (e *Engine) Registry() *extensions.Registry { return e.registry }

// Session is a running TestPackage: one spawned agent plus the package it
// was spawned for. A Session is scoped to exactly one worker process.
type Session struct {
	engine *Engine
	pkg    *testpkg.TestPackage
	record *agency.AgentRecord
}

// StartSession selects a launcher, spawns its worker, and completes the
// handshake — the Agency's GetAgent — for one leaf TestPackage.
func (e *Engine) StartSession(ctx context.Context, pkg *testpkg.TestPackage) (*Session, error) {
	if err := pkg.Validate(); err != nil {
		return nil, err
	}
	if !pkg.IsLeaf() {
		return nil, enginerr.New(enginerr.KindBadBinary, "StartSession requires a leaf test package")
	}

	settings := pkg.EffectiveSettings(nil)
	rec, err := e.agency.GetAgent(ctx, pkg, settings)
	if err != nil {
		return nil, err
	}
	return &Session{engine: e, pkg: pkg, record: rec}, nil
}

// Load tells the session's worker to inspect and load pkg's binary,
// returning the test tree XML.
func (s *Session) Load(ctx context.Context) (string, error) {
	settings := s.pkg.EffectiveSettings(nil)
	_, result, err := s.engine.agency.Dispatch(ctx, s.record, transport.Command{
		Name: "Load",
		Args: []string{s.pkg.Path, encodeSettings(settings)},
	})
	if err != nil {
		return "", err
	}
	if !result.OK {
		return "", enginerr.New(enginerr.Kind(result.ErrKind), result.ErrMessage)
	}
	return string(result.Payload), nil
}

// CountTestCases returns how many test cases filterXML selects.
func (s *Session) CountTestCases(ctx context.Context, filterXML string) (int, error) {
	_, result, err := s.engine.agency.Dispatch(ctx, s.record, transport.Command{Name: "CountTestCases", Args: []string{filterXML}})
	if err != nil {
		return 0, err
	}
	if !result.OK {
		return 0, enginerr.New(enginerr.Kind(result.ErrKind), result.ErrMessage)
	}
	var n int
	fmt.Sscanf(string(result.Payload), "%d", &n)
	return n, nil
}

// Explore returns the test tree XML for filterXML without running anything.
func (s *Session) Explore(ctx context.Context, filterXML string) (string, error) {
	_, result, err := s.engine.agency.Dispatch(ctx, s.record, transport.Command{Name: "Explore", Args: []string{filterXML}})
	if err != nil {
		return "", err
	}
	if !result.OK {
		return "", enginerr.New(enginerr.Kind(result.ErrKind), result.ErrMessage)
	}
	return string(result.Payload), nil
}

// EventListener receives progress events streamed during Run, in the
// worker's emission order.
type EventListener interface {
	OnEvent(name string, payload []byte)
}

// Run executes filterXML's selection, forwarding every event the worker
// emits to listener before returning the aggregated result XML.
func (s *Session) Run(ctx context.Context, listener EventListener, filterXML string) (string, error) {
	events, result, err := s.engine.agency.Dispatch(ctx, s.record, transport.Command{Name: "Run", Args: []string{filterXML}})
	for _, ev := range events {
		if listener != nil {
			listener.OnEvent(ev.Name, ev.Payload)
		}
	}
	if err != nil {
		return "", err
	}
	if !result.OK {
		return "", enginerr.New(enginerr.Kind(result.ErrKind), result.ErrMessage)
	}
	return string(result.Payload), nil
}

// StopRun asks the in-flight run to stop. force=true never reaches the
// driver: the session kills the worker process immediately, since "force"
// is an Agency-level termination, not a cooperative one with a grace
// period.
func (s *Session) StopRun(ctx context.Context, force bool) error {
	if force {
		return s.engine.agency.Kill(s.record)
	}
	_, result, err := s.engine.agency.Dispatch(ctx, s.record, transport.Command{Name: "StopRun", Args: []string{"false"}})
	if err != nil {
		return err
	}
	if !result.OK {
		return enginerr.New(enginerr.Kind(result.ErrKind), result.ErrMessage)
	}
	return nil
}

// Close releases the session's agent, asking its worker to exit gracefully
// before killing it if it does not within the engine's release timeout.
func (s *Session) Close() error {
	return s.engine.agency.ReleaseAgent(s.record)
}

// RuntimeSupports reports whether host can run a binary declaring target,
// parsing both with internal/runtimeid.
func RuntimeSupports(host, target string) (bool, error) {
	h, err := runtimeid.Parse(host)
	if err != nil {
		return false, err
	}
	t, err := runtimeid.Parse(target)
	if err != nil {
		return false, err
	}
	return h.Supports(t), nil
}

func encodeSettings(settings map[string]string) string {
	b, _ := json.Marshal(settings)
	return string(b)
}
