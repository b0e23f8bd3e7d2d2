package extensions

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nexustest/engine/internal/enginerr"
	"github.com/nexustest/engine/internal/runtimeid"
)

// HostFamily identifies which runtime family this engine process itself was
// built for, used by the target-framework compatibility gate.
type HostFamily runtimeid.Family

const (
	HostGo     HostFamily = HostFamily(runtimeid.FamilyGo)
	HostGccgo  HostFamily = HostFamily(runtimeid.FamilyGccgo)
	HostTinyGo HostFamily = HostFamily(runtimeid.FamilyTinyGo)
)

// manifestSuffix is the sidecar-manifest file extension scanned for when no
// addins-manifest constrains the directory.
const manifestSuffix = ".addin.yaml"

type candidate struct {
	manifestPath string
	fromWildcard bool
}

// Discover walks hostDir once, honoring any *.addins manifests it contains,
// and returns the ExtensionPoints and nodes found. It never calls
// plugin.Open; that happens lazily from ExtensionNode.Object. Read failures
// on a from-wildcard candidate are demoted to warnings (returned, not
// fatal); on an explicitly-listed candidate they fail discovery entirely.
func Discover(hostDir string, host HostFamily, log *zap.Logger) (*Registry, []error, error) {
	if host == HostGccgo {
		return nil, nil, enginerr.New(enginerr.KindExtensionLoadError, "gccgo is not a supported extension host family")
	}

	reg := newRegistry()
	candidates, err := collectCandidates(hostDir)
	if err != nil {
		return nil, nil, enginerr.Wrap(enginerr.KindExtensionLoadError, "walking host directory", err)
	}

	var warnings []error
	visited := map[string]bool{}

	// Stable order: sort candidates by manifest path so discovery is
	// deterministic across runs (directory walk order is not otherwise
	// guaranteed to be stable across platforms).
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].manifestPath < candidates[j].manifestPath })

	type loaded struct {
		c        *candidate
		manifest *PluginManifest
	}
	bySimpleName := map[string]loaded{}

	for i := range candidates {
		c := &candidates[i]
		if visited[c.manifestPath] {
			continue
		}
		visited[c.manifestPath] = true

		simpleName := strings.TrimSuffix(filepath.Base(c.manifestPath), manifestSuffix)
		manifest, readErr := readManifest(c.manifestPath)
		if readErr != nil {
			if c.fromWildcard {
				warnings = append(warnings, fmt.Errorf("skipping %s: %w", c.manifestPath, readErr))
				continue
			}
			return nil, warnings, enginerr.Wrap(enginerr.KindExtensionLoadError, fmt.Sprintf("reading manifest %s", c.manifestPath), readErr)
		}

		// Deduplicate by simple name, keeping the higher version: the
		// loser never reaches registerManifest at all, so there is
		// nothing to unregister.
		if prev, ok := bySimpleName[simpleName]; ok {
			if !isHigherVersion(manifest.Version, prev.manifest.Version) {
				continue
			}
		}
		bySimpleName[simpleName] = loaded{c: c, manifest: manifest}
	}

	// Registration order follows manifest path order among the winners,
	// independent of iteration order over the map above.
	winners := make([]loaded, 0, len(bySimpleName))
	for _, l := range bySimpleName {
		winners = append(winners, l)
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i].c.manifestPath < winners[j].c.manifestPath })

	for _, l := range winners {
		if err := registerManifest(reg, l.manifest, l.c, host, log); err != nil {
			if l.c.fromWildcard {
				warnings = append(warnings, err)
				continue
			}
			return nil, warnings, err
		}
	}

	return reg, warnings, nil
}

func collectCandidates(hostDir string) ([]candidate, error) {
	entries, err := os.ReadDir(hostDir)
	if err != nil {
		return nil, err
	}

	var manifestFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".addins") {
			manifestFiles = append(manifestFiles, filepath.Join(hostDir, e.Name()))
		}
	}

	if len(manifestFiles) == 0 {
		return scanAllManifests(hostDir)
	}

	var out []candidate
	for _, mf := range manifestFiles {
		f, err := os.Open(mf)
		if err != nil {
			return nil, err
		}
		lines, err := ParseAddinsManifest(f)
		f.Close()
		if err != nil {
			return nil, err
		}

		for _, line := range lines {
			switch line.Kind {
			case EntryDirectory:
				sub, err := scanAllManifests(filepath.Join(hostDir, line.Path))
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
			case EntryWildcard:
				matches, err := doublestar.FilepathGlob(filepath.Join(hostDir, line.Path))
				if err != nil {
					return nil, err
				}
				for _, m := range matches {
					if strings.HasSuffix(m, manifestSuffix) {
						out = append(out, candidate{manifestPath: m, fromWildcard: true})
					}
				}
			case EntryAssembly:
				out = append(out, candidate{manifestPath: filepath.Join(hostDir, line.Path), fromWildcard: false})
			}
		}
	}
	return out, nil
}

func scanAllManifests(dir string) ([]candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []candidate
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), manifestSuffix) {
			out = append(out, candidate{manifestPath: filepath.Join(dir, e.Name()), fromWildcard: false})
		}
	}
	return out, nil
}

func readManifest(manifestPath string) (*PluginManifest, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePluginManifest(f)
}

// isHigherVersion does a numeric dotted-version comparison; good enough for
// the simple "MAJOR.MINOR.PATCH" versions plugin manifests declare. Missing
// or non-numeric components compare as zero.
func isHigherVersion(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			return av > bv
		}
	}
	return false
}

// registerManifest registers a manifest's declared points and extensions
// against reg, gating both the target runtime family and each extension's
// declared engine version.
func registerManifest(reg *Registry, m *PluginManifest, c *candidate, host HostFamily, log *zap.Logger) error {
	targetRuntime, err := runtimeid.Parse(defaultString(m.TargetRuntime, "any"))
	if err != nil {
		return enginerr.Wrap(enginerr.KindExtensionLoadError, fmt.Sprintf("%s: parsing targetRuntime", c.manifestPath), err)
	}

	if err := gateTargetFamily(host, runtimeid.Family(targetRuntime.Family)); err != nil {
		return err
	}

	for _, p := range m.Points {
		if err := reg.registerPoint(&ExtensionPoint{Path: p.Path, ExpectedTypeName: p.ExpectedType, Description: p.Description}); err != nil {
			return err
		}
	}
	for _, tp := range m.TypePoints {
		path := tp.Path
		if path == "" {
			path = "/Engine/TypeExtensions/" + tp.TypeName
		}
		if err := reg.registerPoint(&ExtensionPoint{Path: path, ExpectedTypeName: defaultString(tp.ExpectedType, tp.TypeName), Description: tp.Description}); err != nil {
			return err
		}
	}

	for _, ext := range m.Extensions {
		if ext.EngineVersion > CompatibleVersion {
			if log != nil {
				log.Info("skipping extension from incompatible engine version",
					zap.String("type", ext.TypeName), zap.Int("engineVersion", ext.EngineVersion))
			}
			continue
		}

		enabled := true
		if ext.Enabled != nil {
			enabled = *ext.Enabled
		}

		node := &ExtensionNode{
			AssemblyPath:      c.manifestPath,
			AssemblyVersion:   m.Version,
			TypeName:          ext.TypeName,
			TargetRuntime:     targetRuntime,
			Path:              ext.Path,
			Description:       ext.Description,
			Properties:        ext.Properties,
			constructorSymbol: defaultString(ext.ConstructorSymbol, "New"),
			fromWildcard:      c.fromWildcard,
			enabled:           enabled,
			open:              openPlugin,
		}

		path := ext.Path
		if path == "" {
			deduced, err := reg.deducePath(ext.TypeName, ext.Implements, ext.Embeds)
			if err != nil {
				return err
			}
			path = deduced
			node.Path = path
		}

		if err := reg.addExtension(path, node); err != nil {
			return err
		}
	}

	return nil
}

func gateTargetFamily(host HostFamily, target runtimeid.Family) error {
	if target == runtimeid.FamilyAny {
		return nil
	}
	switch host {
	case HostGo:
		if target == runtimeid.FamilyTinyGo {
			return enginerr.New(enginerr.KindIncompatibleFramework, "a go host cannot load a tinygo extension")
		}
	case HostTinyGo:
		if target != runtimeid.FamilyTinyGo {
			return enginerr.New(enginerr.KindIncompatibleFramework, "a tinygo host can only load tinygo extensions")
		}
	}
	return nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// CombineWarnings folds discovery warnings into a single error for callers
// that want one value to log, using multierr so none of the individual
// causes is lost.
func CombineWarnings(warnings []error) error {
	var err error
	for _, w := range warnings {
		err = multierr.Append(err, w)
	}
	return err
}
