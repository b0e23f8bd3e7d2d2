package extensions

import (
	"bufio"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// PointDecl is an assembly-level extension-point declaration: a plugin
// manifest can declare the extension points it offers to other plugins.
type PointDecl struct {
	Path         string `yaml:"path"`
	ExpectedType string `yaml:"expectedType"`
	Description  string `yaml:"description"`
}

// TypePointDecl is a type-level extension-point declaration; Path defaults
// to "/Engine/TypeExtensions/<TypeName>" when left empty.
type TypePointDecl struct {
	TypeName     string `yaml:"typeName"`
	Path         string `yaml:"path"`
	ExpectedType string `yaml:"expectedType"`
	Description  string `yaml:"description"`
}

// ExtensionDecl is one extension registration inside a plugin manifest —
// the Go-native stand-in for a type decorated with an extension attribute.
type ExtensionDecl struct {
	TypeName          string              `yaml:"typeName"`
	ConstructorSymbol string              `yaml:"constructorSymbol"`
	Path              string              `yaml:"path"`
	Description       string              `yaml:"description"`
	Enabled           *bool               `yaml:"enabled"`
	Properties        map[string][]string `yaml:"properties"`
	// Implements and Embeds are the type's full interface/base-type
	// closure, computed at plugin-build time: Go has no runtime base-type
	// chain to walk post-hoc, so the manifest carries the already-flattened
	// ancestry for path deduction.
	Implements   []string `yaml:"implements"`
	Embeds       []string `yaml:"embeds"`
	EngineVersion int     `yaml:"engineVersion"`
}

// PluginManifest is the sidecar file (<name>.addin.yaml) describing one
// candidate assembly without requiring plugin.Open.
type PluginManifest struct {
	Name          string          `yaml:"name"`
	Version       string          `yaml:"version"`
	TargetRuntime string          `yaml:"targetRuntime"`
	Points        []PointDecl     `yaml:"points"`
	TypePoints    []TypePointDecl `yaml:"typePoints"`
	Extensions    []ExtensionDecl `yaml:"extensions"`
}

// ParsePluginManifest parses a sidecar manifest's YAML content.
func ParsePluginManifest(r io.Reader) (*PluginManifest, error) {
	var m PluginManifest
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ManifestEntryKind classifies one parsed line of an addins-manifest file.
type ManifestEntryKind int

const (
	EntryDirectory ManifestEntryKind = iota
	EntryWildcard
	EntryAssembly
)

// ManifestEntry is one non-comment, non-blank line of an *.addins file.
type ManifestEntry struct {
	Kind ManifestEntryKind
	Path string
}

// ParseAddinsManifest parses the *.addins grammar: one entry per line, '#'
// starts a comment that runs to end-of-line, blank lines are ignored,
// backslashes normalize to forward slashes, a trailing '/' means
// directory-scan semantics, and '*' marks a wildcard.
func ParseAddinsManifest(r io.Reader) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.ReplaceAll(line, `\`, "/")

		switch {
		case strings.HasSuffix(line, "/"):
			entries = append(entries, ManifestEntry{Kind: EntryDirectory, Path: line})
		case strings.Contains(line, "*"):
			entries = append(entries, ManifestEntry{Kind: EntryWildcard, Path: line})
		default:
			entries = append(entries, ManifestEntry{Kind: EntryAssembly, Path: line})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
