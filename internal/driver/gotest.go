package driver

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/nexustest/engine/internal/enginerr"
)

// GoTestBinaryDriver drives a precompiled `go test -c` binary through its
// standard testing flags. testify and ginkgo tests both compile down to an
// ordinary go test binary, so both framework names in the dispatch table
// resolve here: there is no separate runner API to call into the way a
// framework with its own controller assembly would need.
type GoTestBinaryDriver struct {
	baseDriver
	binaryPath string
	testNames  []string
}

func newGoTestBinaryDriver(binaryPath string) Driver {
	return &GoTestBinaryDriver{binaryPath: binaryPath}
}

type testCaseXML struct {
	Name string `xml:"name,attr"`
}

type testSuiteXML struct {
	XMLName xml.Name      `xml:"test-suite"`
	Cases   []testCaseXML `xml:"test-case"`
}

// Load enumerates the binary's test names via -test.list and builds the
// test tree XML from them.
func (d *GoTestBinaryDriver) Load(binaryPath string, settings map[string]string) (string, error) {
	out, err := exec.Command(binaryPath, "-test.list=.*").Output()
	if err != nil {
		return "", enginerr.Wrap(enginerr.KindBadBinary, "listing tests in "+binaryPath, err)
	}

	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			names = append(names, line)
		}
	}

	d.binaryPath = binaryPath
	d.testNames = names
	d.state = StateLoaded

	tree := testSuiteXML{}
	for _, n := range names {
		tree.Cases = append(tree.Cases, testCaseXML{Name: n})
	}
	b, err := xml.Marshal(tree)
	if err != nil {
		return "", enginerr.Wrap(enginerr.KindDriverError, "marshaling test tree", err)
	}
	return string(b), nil
}

func (d *GoTestBinaryDriver) CountTestCases(filterXML string) (int, error) {
	if err := d.requireLoadedOrLater(); err != nil {
		return 0, err
	}
	names := testNames(filterXML)
	if len(names) == 0 {
		return len(d.testNames), nil
	}
	return len(names), nil
}

func (d *GoTestBinaryDriver) Explore(filterXML string) (string, error) {
	if err := d.requireLoadedOrLater(); err != nil {
		return "", err
	}
	selected := d.testNames
	if names := testNames(filterXML); len(names) > 0 {
		selected = names
	}
	tree := testSuiteXML{}
	for _, n := range selected {
		tree.Cases = append(tree.Cases, testCaseXML{Name: n})
	}
	b, err := xml.Marshal(tree)
	if err != nil {
		return "", enginerr.Wrap(enginerr.KindDriverError, "marshaling explored tree", err)
	}
	return string(b), nil
}

type runResultXML struct {
	XMLName xml.Name     `xml:"test-run"`
	Total   int          `xml:"total,attr"`
	Passed  int          `xml:"passed,attr"`
	Failed  int          `xml:"failed,attr"`
	Skipped int          `xml:"skipped,attr"`
	Cases   []caseResult `xml:"test-case"`
}

type caseResult struct {
	Name   string `xml:"name,attr"`
	Result string `xml:"result,attr"`
}

var goTestResultLine = regexp.MustCompile(`^--- (PASS|FAIL|SKIP): (\S+)`)

// Run executes the binary with `-test.v` and an optional `-test.run`
// pattern built from filterXML, streaming one TestFinished event per test
// case result line to listener and returning an aggregated result. No
// TestStarted event is emitted.
func (d *GoTestBinaryDriver) Run(listener ResultListener, filterXML string) (string, error) {
	if err := d.requireLoadedOrLater(); err != nil {
		return "", err
	}
	if excludesAll(filterXML, d.testNames) {
		return skippedSuiteXML(d.testNames), nil
	}

	d.state = StateRunning
	defer func() {
		if d.state == StateRunning {
			d.state = StateLoaded
		}
	}()

	args := []string{"-test.v"}
	if names := testNames(filterXML); len(names) > 0 {
		args = append(args, "-test.run="+runPattern(names))
	}

	cmd := exec.Command(d.binaryPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", enginerr.Wrap(enginerr.KindDriverError, "piping test binary output", err)
	}
	if err := cmd.Start(); err != nil {
		return "", enginerr.Wrap(enginerr.KindDriverError, "starting test binary", err)
	}

	result := runResultXML{}
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		m := goTestResultLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		status, name := m[1], m[2]
		if listener != nil {
			listener.OnEvent("TestFinished", []byte(name+" "+status))
		}
		result.Total++
		switch status {
		case "PASS":
			result.Passed++
		case "FAIL":
			result.Failed++
		case "SKIP":
			result.Skipped++
		}
		result.Cases = append(result.Cases, caseResult{Name: name, Result: status})
	}

	waitErr := cmd.Wait()
	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); !ok {
			return "", enginerr.Wrap(enginerr.KindDriverError, "running test binary", waitErr)
		}
	}

	b, err := xml.Marshal(result)
	if err != nil {
		return "", enginerr.Wrap(enginerr.KindDriverError, "marshaling run result", err)
	}
	return string(b), nil
}

func skippedSuiteXML(known []string) string {
	result := runResultXML{Total: len(known), Skipped: len(known)}
	for _, n := range known {
		result.Cases = append(result.Cases, caseResult{Name: n, Result: "SKIP"})
	}
	b, _ := xml.Marshal(result)
	return string(b)
}

func runPattern(names []string) string {
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = regexp.QuoteMeta(n)
	}
	return fmt.Sprintf("^(%s)$", strings.Join(escaped, "|"))
}
