package filter

import "testing"

func TestBuildMultipleTestsWrapsInOr(t *testing.T) {
	got := NewBuilder().
		AddTests("My.First.Test", "My.Second.Test", "My.Third.Test").
		Build()

	want := "<filter><or><test>My.First.Test</test><test>My.Second.Test</test><test>My.Third.Test</test></or></filter>"
	if got != want {
		t.Fatalf("Build() = %q, want %q", got, want)
	}
}

func TestBuildEscapesXML(t *testing.T) {
	got := NewBuilder().
		AddTest(`My.Test.Name<T>("abc")`).
		Build()

	want := `<filter><test>My.Test.Name&lt;T&gt;(&quot;abc&quot;)</test></filter>`
	if got != want {
		t.Fatalf("Build() = %q, want %q", got, want)
	}
}

func TestBuildEmpty(t *testing.T) {
	got := NewBuilder().Build()
	want := "<filter></filter>"
	if got != want {
		t.Fatalf("Build() = %q, want %q", got, want)
	}
}

func TestBuildSingleTestWithWhere(t *testing.T) {
	got := NewBuilder().
		AddTest("My.First.Test").
		Where("<cat>Integration</cat>").
		Build()

	want := "<filter><or><test>My.First.Test</test></or><cat>Integration</cat></filter>"
	if got != want {
		t.Fatalf("Build() = %q, want %q", got, want)
	}
}
