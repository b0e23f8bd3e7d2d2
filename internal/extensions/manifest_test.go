package extensions

import (
	"strings"
	"testing"
)

func TestParseAddinsManifestGrammar(t *testing.T) {
	input := `# a leading comment
plugins/
plugins/special.addin.yaml
plugins\windows-only.addin.yaml
extra/*.addin.yaml

# trailing comment
`
	entries, err := ParseAddinsManifest(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseAddinsManifest: %v", err)
	}

	want := []ManifestEntry{
		{Kind: EntryDirectory, Path: "plugins/"},
		{Kind: EntryAssembly, Path: "plugins/special.addin.yaml"},
		{Kind: EntryAssembly, Path: "plugins/windows-only.addin.yaml"},
		{Kind: EntryWildcard, Path: "extra/*.addin.yaml"},
	}

	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, e := range entries {
		if e != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, e, want[i])
		}
	}
}

func TestParseAddinsManifestInlineComment(t *testing.T) {
	entries, err := ParseAddinsManifest(strings.NewReader("plugins/foo.addin.yaml # keep this one\n"))
	if err != nil {
		t.Fatalf("ParseAddinsManifest: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "plugins/foo.addin.yaml" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestParsePluginManifest(t *testing.T) {
	input := `
name: sample
version: 1.2.0
targetRuntime: go-1.24
extensions:
  - typeName: SampleReporter
    constructorSymbol: NewSampleReporter
    implements:
      - Reporter
`
	m, err := ParsePluginManifest(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParsePluginManifest: %v", err)
	}
	if m.Name != "sample" || m.Version != "1.2.0" {
		t.Fatalf("m = %+v", m)
	}
	if len(m.Extensions) != 1 || m.Extensions[0].TypeName != "SampleReporter" {
		t.Fatalf("m.Extensions = %+v", m.Extensions)
	}
}
