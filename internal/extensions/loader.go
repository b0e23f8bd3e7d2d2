package extensions

import (
	"fmt"
	"plugin"
)

func errNoLoader(typeName string) error {
	return fmt.Errorf("extension %s: no plugin loader configured", typeName)
}

// openPlugin loads assemblyPath as a Go plugin and invokes the exported
// constructor symbol, which must have the signature func() (any, error).
// This is the only place plugin.Open is called: discovery never loads code,
// only reads sidecar manifests (see types.go doc comment).
func openPlugin(assemblyPath, symbol string) (any, error) {
	p, err := plugin.Open(assemblyPath)
	if err != nil {
		return nil, fmt.Errorf("opening plugin %s: %w", assemblyPath, err)
	}
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("looking up constructor %s in %s: %w", symbol, assemblyPath, err)
	}
	ctor, ok := sym.(func() (any, error))
	if !ok {
		return nil, fmt.Errorf("constructor %s in %s has the wrong signature, want func() (any, error)", symbol, assemblyPath)
	}
	return ctor()
}
