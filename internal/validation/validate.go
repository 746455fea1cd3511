package validation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Verdict is the outcome of validating one unit.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	// VerdictFail means the unit compiled or tested incorrectly.
	VerdictFail Verdict = "FAIL"
	// VerdictInconclusive means the toolchain could not decide, e.g. no JDK.
	VerdictInconclusive Verdict = "INCONCLUSIVE"
)

// Input is one unit's sources to validate.
type Input struct {
	Unit          string
	ClassName     string
	TestClassName string
	Source        string
	TestSource    string
}

// Report is the validation result for one unit. It is persisted verbatim as
// the unit's VALIDATION_REPORT artifact.
type Report struct {
	Unit        string    `json:"unit"`
	Verdict     Verdict   `json:"verdict"`
	Compiled    bool      `json:"compiled"`
	TestsRan    bool      `json:"tests_ran"`
	Diagnostics string    `json:"diagnostics,omitempty"`
	TestReport  string    `json:"test_report,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	ValidatedAt time.Time `json:"validated_at"`
}

// Validate writes the unit's sources to a scratch directory, compiles them
// and runs the synthesized tests. A compile error surfaces as *CompileFailure
// and a failing test run as *TestFailure, both alongside a FAIL report so the
// caller can both persist the report and decide on a retry. An unusable
// toolchain yields an INCONCLUSIVE report with a nil error.
func Validate(ctx context.Context, runner ToolRunner, in Input) (*Report, error) {
	report := &Report{Unit: in.Unit, ValidatedAt: time.Now().UTC()}

	tmpDir, err := os.MkdirTemp("", "unit-validation-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	srcPath := filepath.Join(tmpDir, in.ClassName+".java")
	testPath := filepath.Join(tmpDir, in.TestClassName+".java")
	if err := os.WriteFile(srcPath, []byte(in.Source), 0644); err != nil {
		return nil, fmt.Errorf("failed to write source: %w", err)
	}
	if err := os.WriteFile(testPath, []byte(in.TestSource), 0644); err != nil {
		return nil, fmt.Errorf("failed to write test source: %w", err)
	}

	diagnostics, err := runner.Compile(ctx, tmpDir, []string{srcPath, testPath})
	report.Diagnostics = diagnostics
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			report.Verdict = VerdictInconclusive
			report.Notes = toolErr.Error()
			return report, nil
		}
		report.Verdict = VerdictFail
		return report, &CompileFailure{Unit: in.Unit, Diagnostics: diagnostics, Cause: err}
	}
	report.Compiled = true

	testReport, err := runner.RunTests(ctx, tmpDir, qualifiedTestClass(in))
	report.TestReport = testReport
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			report.Verdict = VerdictInconclusive
			report.Notes = toolErr.Error()
			return report, nil
		}
		report.Verdict = VerdictFail
		return report, &TestFailure{Unit: in.Unit, Report: testReport, Cause: err}
	}
	report.TestsRan = true

	report.Verdict = VerdictPass
	return report, nil
}

// qualifiedTestClass derives the fully qualified test class name from the
// test source's package declaration.
func qualifiedTestClass(in Input) string {
	for _, line := range strings.Split(in.TestSource, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "package ") {
			pkg := strings.TrimSuffix(strings.TrimPrefix(line, "package "), ";")
			return strings.TrimSpace(pkg) + "." + in.TestClassName
		}
	}
	return in.TestClassName
}
