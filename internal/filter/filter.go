// Package filter builds the XML test-selection filter the engine passes
// around as a string. The worker-side driver reads the selected test names
// back out of it (internal/driver/filterxml.go).
package filter

import "strings"

// Builder accumulates test-name selections and an optional where-clause and
// renders them into the engine's filter XML dialect.
type Builder struct {
	tests []string
	where string
}

// NewBuilder returns an empty filter Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddTest adds one fully-qualified test name to the selection.
func (b *Builder) AddTest(name string) *Builder {
	b.tests = append(b.tests, name)
	return b
}

// AddTests adds multiple fully-qualified test names to the selection.
func (b *Builder) AddTests(names ...string) *Builder {
	b.tests = append(b.tests, names...)
	return b
}

// Where sets a raw where-clause, inserted verbatim inside <filter> alongside
// any <test>/<or> selections. The engine does not interpret its contents.
func (b *Builder) Where(expr string) *Builder {
	b.where = expr
	return b
}

// Build renders the accumulated selection into filter XML. A single test
// selection with no where-clause renders as a bare <test> element; two or
// more render wrapped in <or>.
func (b *Builder) Build() string {
	var sb strings.Builder
	sb.WriteString("<filter>")

	switch {
	case len(b.tests) == 1 && b.where == "":
		writeTest(&sb, b.tests[0])
	case len(b.tests) > 0:
		sb.WriteString("<or>")
		for _, t := range b.tests {
			writeTest(&sb, t)
		}
		sb.WriteString("</or>")
	}

	if b.where != "" {
		sb.WriteString(b.where)
	}

	sb.WriteString("</filter>")
	return sb.String()
}

func writeTest(sb *strings.Builder, name string) {
	sb.WriteString("<test>")
	sb.WriteString(escapeXML(name))
	sb.WriteString("</test>")
}

// escapeXML escapes the five characters XML text content requires, in a
// single pass over s, so the entities it writes are never escaped again.
func escapeXML(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '"':
			sb.WriteString("&quot;")
		case '\'':
			sb.WriteString("&apos;")
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
