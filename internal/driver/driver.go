// Package driver implements the worker-side test-framework contract: a
// state machine that loads a binary, counts and explores its test tree, and
// runs it against a filter, dispatching to whichever test framework the
// binary references.
package driver

import (
	"github.com/nexustest/engine/internal/enginerr"
)

// State is the driver's lifecycle state.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "Unloaded"
	case StateLoaded:
		return "Loaded"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// ResultListener receives events emitted while a Run is in progress.
type ResultListener interface {
	OnEvent(name string, payload []byte)
}

// Driver is the contract every framework adapter implements.
type Driver interface {
	Load(binaryPath string, settings map[string]string) (testTreeXML string, err error)
	CountTestCases(filterXML string) (int, error)
	Explore(filterXML string) (xml string, err error)
	Run(listener ResultListener, filterXML string) (resultXML string, err error)
	StopRun(force bool) error
}

// baseDriver tracks the Unloaded -> Loaded -> Running -> Loaded -> Stopped
// state machine; framework-specific drivers embed it and call
// requireLoadedOrLater before doing any work.
type baseDriver struct {
	state State
}

func (b *baseDriver) requireLoadedOrLater() error {
	if b.state == StateUnloaded {
		return enginerr.Sentinel(enginerr.KindNotLoaded)
	}
	return nil
}

// StopRun is shared by every driver: force=true is never supported at the
// driver level — the agency implements "force" by killing the worker
// process instead of asking the framework to stop cooperatively.
func (b *baseDriver) StopRun(force bool) error {
	if force {
		return enginerr.Sentinel(enginerr.KindForceStopNotSupported)
	}
	if b.state == StateUnloaded {
		return enginerr.Sentinel(enginerr.KindNotLoaded)
	}
	b.state = StateStopped
	return nil
}
