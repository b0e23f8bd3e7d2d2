package driver

import (
	"github.com/nexustest/engine/internal/enginerr"
	"github.com/nexustest/engine/internal/inspector"
)

// frameworkTable is the one place framework reference names are listed;
// adding support for another framework means adding one row here, not
// touching the state machine or the worker dispatch loop.
var frameworkTable = []struct {
	referenceName string
	factory       func(binaryPath string) Driver
}{
	{"github.com/stretchr/testify", newGoTestBinaryDriver},
	{"github.com/onsi/ginkgo/v2", newGoTestBinaryDriver},
	{"github.com/onsi/ginkgo", newGoTestBinaryDriver},
}

// Select inspects report's referenced modules and dispatches to the
// matching framework factory, or an InvalidBinaryDriver carrying the reason
// when none match.
func Select(report inspector.Report) Driver {
	for _, row := range frameworkTable {
		if report.HasReference(row.referenceName) {
			return row.factory(report.Path)
		}
	}
	return NewInvalidBinaryDriver(enginerr.New(enginerr.KindFrameworkNotFound,
		"no known test framework referenced by "+report.Path))
}
