// Package extensions implements plugin discovery and an indexing registry:
// it scans a host directory once at startup, resolves extension points from
// declared type hierarchy, and indexes extensions for lookup by path or
// expected type.
//
// An "assembly" here is a Go plugin object file (built with
// -buildmode=plugin) paired with a YAML sidecar manifest that carries
// discovery-time metadata without requiring the code itself to be loaded;
// plugin.Open is only ever called lazily from ExtensionNode.Object.
package extensions

import (
	"sync"

	"github.com/nexustest/engine/internal/runtimeid"
)

// CompatibleVersion is the engine version extensions are gated against: an
// extension declaring EngineVersion greater than this is skipped at
// discovery time.
const CompatibleVersion = 1

// ExtensionPoint is a named slot that accepts zero or more extensions.
type ExtensionPoint struct {
	Path             string
	ExpectedTypeName string
	Description      string

	mu         sync.Mutex
	extensions []*ExtensionNode
}

// Extensions returns the point's extensions in installation order. The
// returned slice is a snapshot; callers must not mutate it.
func (p *ExtensionPoint) Extensions() []*ExtensionNode {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*ExtensionNode, len(p.extensions))
	copy(out, p.extensions)
	return out
}

func (p *ExtensionPoint) append(n *ExtensionNode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extensions = append(p.extensions, n)
}

// ExtensionNode is one registered plugin, lazily materialized on first use.
type ExtensionNode struct {
	AssemblyPath    string
	AssemblyVersion string
	TypeName        string
	TargetRuntime   runtimeid.RuntimeId
	Path            string
	Description     string
	Properties      map[string][]string

	// constructorSymbol names the exported plugin symbol invoked to build
	// the extension object, e.g. "NewFooExtension".
	constructorSymbol string
	// fromWildcard records whether this node's assembly was discovered via
	// an addins-manifest wildcard entry rather than an explicit listing.
	fromWildcard bool

	mu       sync.Mutex
	enabled  bool
	object   any
	objErr   error
	objBuilt bool

	// open is the plugin-loading hook; overridable in tests so node
	// materialization can be exercised without a real .so on disk.
	open func(assemblyPath, symbol string) (any, error)
}

// Enabled reports whether the node is currently enabled.
func (n *ExtensionNode) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}

// SetEnabled toggles the node's enabled flag. Idempotent: calling it twice
// with the same value leaves the same observable state as calling it once.
func (n *ExtensionNode) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Object lazily materializes and caches the extension's backing plugin
// object. Every subsequent call returns the same cached instance.
func (n *ExtensionNode) Object() (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.objBuilt {
		return n.object, n.objErr
	}
	n.objBuilt = true
	if n.open == nil {
		n.object, n.objErr = nil, errNoLoader(n.TypeName)
		return n.object, n.objErr
	}
	n.object, n.objErr = n.open(n.AssemblyPath, n.constructorSymbol)
	return n.object, n.objErr
}
