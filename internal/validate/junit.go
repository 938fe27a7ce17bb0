package validate

import (
	"encoding/xml"
	"os"

	"aprbot/internal/errors"
)

// TestCounts summarizes one JUnit-style XML artifact.
type TestCounts struct {
	Total    int
	Failures int
	Errors   int
	Disabled int
}

// Passed derives the passed-test count, clamped at zero.
func (c TestCounts) Passed() int {
	passed := c.Total - c.Failures - c.Errors - c.Disabled
	if passed < 0 {
		return 0
	}
	return passed
}

// AllPassed reports whether the run had tests and none failed or errored.
func (c TestCounts) AllPassed() bool {
	return c.Total > 0 && c.Failures == 0 && c.Errors == 0
}

// junitRoot reads only the outer element's attributes; gtest emits
// <testsuites>, single-suite runners emit <testsuite>, and both carry the
// same counters.
type junitRoot struct {
	Tests    int `xml:"tests,attr"`
	Failures int `xml:"failures,attr"`
	Errors   int `xml:"errors,attr"`
	Disabled int `xml:"disabled,attr"`
}

// ParseJUnitArtifact reads the XML artifact at path. A missing artifact is an
// ArtifactMissing error: a runner that exited zero without writing XML did
// not actually run the tests.
func ParseJUnitArtifact(path string) (TestCounts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return TestCounts{}, errors.New(errors.ArtifactMissing, "test artifact not written: "+path, err)
		}
		return TestCounts{}, errors.New(errors.IOError, "failed to read test artifact: "+path, err)
	}

	var root junitRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return TestCounts{}, errors.New(errors.BadSchema, "test artifact is not valid JUnit XML: "+path, err)
	}

	return TestCounts{
		Total:    root.Tests,
		Failures: root.Failures,
		Errors:   root.Errors,
		Disabled: root.Disabled,
	}, nil
}
