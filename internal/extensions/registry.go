package extensions

import (
	"sync"

	"github.com/nexustest/engine/internal/enginerr"
)

// Registry owns every ExtensionPoint and ExtensionNode discovered at
// startup. After Discover returns, the point/path index is immutable;
// only each node's Enabled flag and cached Object may still change, each
// behind its own per-node mutex.
type Registry struct {
	mu          sync.RWMutex
	byPath      map[string]*ExtensionPoint
	byType      map[string]*ExtensionPoint
	nodesByType map[string][]*ExtensionNode
}

func newRegistry() *Registry {
	return &Registry{
		byPath:      map[string]*ExtensionPoint{},
		byType:      map[string]*ExtensionPoint{},
		nodesByType: map[string][]*ExtensionNode{},
	}
}

func (r *Registry) registerPoint(p *ExtensionPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byPath[p.Path]; ok {
		if existing.ExpectedTypeName == p.ExpectedTypeName {
			return nil // redeclared identically by another assembly; harmless
		}
		return enginerr.New(enginerr.KindDuplicateExtensionPoint, "extension point already registered: "+p.Path)
	}
	r.byPath[p.Path] = p
	if p.ExpectedTypeName != "" {
		r.byType[p.ExpectedTypeName] = p
	}
	return nil
}

func (r *Registry) addExtension(path string, n *ExtensionNode) error {
	r.mu.Lock()
	point, ok := r.byPath[path]
	r.mu.Unlock()
	if !ok {
		return enginerr.New(enginerr.KindNoExtensionPoint, "no extension point registered at path: "+path)
	}
	point.append(n)

	r.mu.Lock()
	r.nodesByType[n.TypeName] = append(r.nodesByType[n.TypeName], n)
	r.mu.Unlock()
	return nil
}

// deducePath resolves an unpathed extension to a point by, in order: exact
// type-identity match, then each implemented interface (the manifest's
// already-flattened Implements list), then each base type up to the root
// (the manifest's Embeds list). A stage that resolves more than one
// distinct point fails with KindAmbiguousExtensionPoint instead of
// silently taking the first match.
func (r *Registry) deducePath(typeName string, implements, embeds []string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.byType[typeName]; ok {
		return p.Path, nil
	}

	if path, err := deduceAmongCandidates(r.byType, typeName, implements); path != "" || err != nil {
		return path, err
	}

	if path, err := deduceAmongCandidates(r.byType, typeName, embeds); path != "" || err != nil {
		return path, err
	}

	return "", enginerr.New(enginerr.KindNoExtensionPoint, "no extension point found for type "+typeName)
}

// deduceAmongCandidates scans names for registered points, returning the
// single distinct point found. Two names resolving to different points is
// an ambiguous deduction; the same point reached via more than one name
// (e.g. two interfaces sharing a point) is not.
func deduceAmongCandidates(byType map[string]*ExtensionPoint, typeName string, names []string) (string, error) {
	var match *ExtensionPoint
	for _, name := range names {
		p, ok := byType[name]
		if !ok {
			continue
		}
		if match != nil && match.Path != p.Path {
			return "", enginerr.New(enginerr.KindAmbiguousExtensionPoint,
				"type "+typeName+" resolves to multiple extension points: "+match.Path+", "+p.Path)
		}
		match = p
	}
	if match != nil {
		return match.Path, nil
	}
	return "", nil
}

// GetExtensionPoint looks up a point by its path identifier.
func (r *Registry) GetExtensionPoint(path string) (*ExtensionPoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byPath[path]
	return p, ok
}

// GetExtensionPointByType looks up the point whose declared expected type
// matches typeName.
func (r *Registry) GetExtensionPointByType(typeName string) (*ExtensionPoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byType[typeName]
	return p, ok
}

// GetExtensionNodes returns the nodes registered at path, in installation
// order.
func (r *Registry) GetExtensionNodes(path string) []*ExtensionNode {
	p, ok := r.GetExtensionPoint(path)
	if !ok {
		return nil
	}
	return p.Extensions()
}

// Extensions materializes every enabled node at path into a T, skipping any
// node whose backing object does not assert to T or that fails to
// materialize.
func Extensions[T any](r *Registry, path string) ([]T, error) {
	nodes := r.GetExtensionNodes(path)
	var out []T
	var err error
	for _, n := range nodes {
		if !n.Enabled() {
			continue
		}
		obj, objErr := n.Object()
		if objErr != nil {
			err = appendErr(err, objErr)
			continue
		}
		typed, ok := obj.(T)
		if !ok {
			continue
		}
		out = append(out, typed)
	}
	return out, err
}

func appendErr(base, next error) error {
	if base == nil {
		return next
	}
	return &multiError{first: base, second: next}
}

// multiError is a minimal two-error chain; callers that want full
// aggregation should use go.uber.org/multierr directly (see
// CombineWarnings), this is only used internally by Extensions to avoid
// importing multierr into a tight generic loop.
type multiError struct {
	first, second error
}

func (m *multiError) Error() string { return m.first.Error() + "; " + m.second.Error() }
func (m *multiError) Unwrap() []error { return []error{m.first, m.second} }

// EnableExtension toggles Enabled on every node whose TypeName matches,
// across every extension point. Idempotent.
func (r *Registry) EnableExtension(typeName string, enabled bool) {
	r.mu.RLock()
	nodes := r.nodesByType[typeName]
	r.mu.RUnlock()
	for _, n := range nodes {
		n.SetEnabled(enabled)
	}
}
