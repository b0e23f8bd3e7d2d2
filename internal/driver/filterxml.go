package driver

import "encoding/xml"

// parsedFilter is the subset of the filter grammar the driver needs to
// build a `-test.run` pattern: the flat list of selected test names. A
// filter with a <where> clause the driver does not understand degrades to
// "run everything" rather than guessing at a narrower selection.
type parsedFilter struct {
	XMLName xml.Name  `xml:"filter"`
	Tests   []xmlTest `xml:"test"`
	Or      *xmlOr    `xml:"or"`
}

type xmlOr struct {
	Tests []xmlTest `xml:"test"`
}

type xmlTest struct {
	Name string `xml:",chardata"`
}

// testNames extracts every selected test name from filterXML. An empty or
// unparseable filter yields no names, meaning "no narrowing."
func testNames(filterXML string) []string {
	if filterXML == "" {
		return nil
	}
	var f parsedFilter
	if err := xml.Unmarshal([]byte(filterXML), &f); err != nil {
		return nil
	}
	var names []string
	for _, t := range f.Tests {
		names = append(names, t.Name)
	}
	if f.Or != nil {
		for _, t := range f.Or.Tests {
			names = append(names, t.Name)
		}
	}
	return names
}

// excludesAll reports whether filterXML names at least one test but none of
// them appear in known (the binary's enumerated test tree), meaning the
// filter excludes the whole binary. A filter with no explicit test names
// (a bare where-clause, or no filter at all) never excludes everything by
// this check — only an explicit, wholly-unmatched selection does.
func excludesAll(filterXML string, known []string) bool {
	names := testNames(filterXML)
	if len(names) == 0 {
		return false
	}
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}
	for _, n := range names {
		if knownSet[n] {
			return false
		}
	}
	return true
}
