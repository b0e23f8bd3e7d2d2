// Package workerhost implements the in-process dispatch loop that runs
// inside cmd/testworker: it owns the single DriverContext for this worker,
// reads Command frames off the wire, invokes the matching driver operation,
// and writes back CommandResult/Event frames.
//
// Commands are dispatched one at a time on the Serve goroutine, each with
// panic recovery around it, and a result is written back regardless of
// whether the work panicked.
package workerhost

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/nexustest/engine/internal/driver"
	"github.com/nexustest/engine/internal/enginerr"
	"github.com/nexustest/engine/internal/inspector"
	"github.com/nexustest/engine/internal/transport"
)

// driverFactory inspects a test binary and selects the Driver that can run
// it. Swappable in tests so Load can be exercised without a real compiled
// binary on disk.
type driverFactory func(binaryPath string) (driver.Driver, error)

func defaultDriverFactory(binaryPath string) (driver.Driver, error) {
	report, err := inspector.Inspect(binaryPath)
	if err != nil {
		return nil, err
	}
	return driver.Select(report), nil
}

// Host owns the worker-side half of one agent's conversation with the
// controller. It starts with no Driver at all — Load's first argument is
// the test binary path, which the Host inspects to pick the framework
// driver before ever touching driver.Driver.Load itself.
type Host struct {
	conn      *transport.Conn
	drv       driver.Driver
	log       *zap.Logger
	newDriver driverFactory
}

// New builds a Host bound to conn. The Driver is selected lazily on the
// first Load command, by inspecting the binary path it names.
func New(conn *transport.Conn, log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	return &Host{conn: conn, log: log, newDriver: defaultDriverFactory}
}

// eventListener adapts driver.ResultListener to Conn.SendEvent.
type eventListener struct {
	conn *Host
}

func (l eventListener) OnEvent(name string, payload []byte) {
	if err := l.conn.conn.SendEvent(transport.Event{Name: name, Payload: payload}); err != nil {
		l.conn.log.Warn("failed to forward event", zap.String("event", name), zap.Error(err))
	}
}

// Serve reads commands until the connection closes or a Stop frame arrives.
// It never returns an error for a failed command — that becomes a
// CommandResult error envelope — only for a transport-level failure.
func (h *Host) Serve() error {
	for {
		cmd, stop, err := h.conn.ReadCommand()
		if err != nil {
			return err
		}
		if stop {
			h.log.Info("received stop frame, ending dispatch loop")
			return nil
		}

		result := h.dispatch(cmd)
		if err := h.conn.SendCommandResult(result); err != nil {
			return err
		}
	}
}

// dispatch invokes the driver operation named by cmd, recovering from any
// panic inside the driver so a single bad invocation cannot take down the
// whole worker process.
func (h *Host) dispatch(cmd transport.Command) (result transport.CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("driver operation panicked",
				zap.String("command", cmd.Name),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			result = errorResult(enginerr.KindDriverError, fmt.Sprintf("panic in %s: %v", cmd.Name, r))
		}
	}()

	switch cmd.Name {
	case "Load":
		binaryPath := argOr(cmd.Args, 0)
		settings := map[string]string{}
		if len(cmd.Args) > 1 {
			_ = json.Unmarshal([]byte(cmd.Args[1]), &settings)
		}
		drv, err := h.newDriver(binaryPath)
		if err != nil {
			return errorResultFrom(err)
		}
		h.drv = drv
		tree, err := h.drv.Load(binaryPath, settings)
		if err != nil {
			return errorResultFrom(err)
		}
		return transport.CommandResult{OK: true, Payload: []byte(tree)}

	case "CountTestCases":
		if h.drv == nil {
			return errorResult(enginerr.KindNotLoaded, "CountTestCases before Load")
		}
		filter := argOr(cmd.Args, 0)
		count, err := h.drv.CountTestCases(filter)
		if err != nil {
			return errorResultFrom(err)
		}
		return transport.CommandResult{OK: true, Payload: []byte(fmt.Sprintf("%d", count))}

	case "Explore":
		if h.drv == nil {
			return errorResult(enginerr.KindNotLoaded, "Explore before Load")
		}
		filter := argOr(cmd.Args, 0)
		xmlOut, err := h.drv.Explore(filter)
		if err != nil {
			return errorResultFrom(err)
		}
		return transport.CommandResult{OK: true, Payload: []byte(xmlOut)}

	case "Run":
		if h.drv == nil {
			return errorResult(enginerr.KindNotLoaded, "Run before Load")
		}
		filter := argOr(cmd.Args, 0)
		xmlOut, err := h.drv.Run(eventListener{conn: h}, filter)
		if err != nil {
			return errorResultFrom(err)
		}
		return transport.CommandResult{OK: true, Payload: []byte(xmlOut)}

	case "StopRun":
		if h.drv == nil {
			return errorResult(enginerr.KindNotLoaded, "StopRun before Load")
		}
		force := argOr(cmd.Args, 0) == "true"
		if err := h.drv.StopRun(force); err != nil {
			return errorResultFrom(err)
		}
		return transport.CommandResult{OK: true}

	default:
		return errorResult(enginerr.KindDriverError, "unknown command: "+cmd.Name)
	}
}

func argOr(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func errorResultFrom(err error) transport.CommandResult {
	kind, ok := enginerr.KindOf(err)
	if !ok {
		return errorResult(enginerr.KindDriverError, err.Error())
	}
	return errorResult(kind, err.Error())
}

func errorResult(kind enginerr.Kind, message string) transport.CommandResult {
	return transport.CommandResult{OK: false, ErrKind: string(kind), ErrMessage: message}
}
