// Package validation checks translated Java units by compiling them and
// running their synthesized tests.
package validation

import "fmt"

// CompileFailure reports that a translated source did not compile. Diagnostics
// carry the compiler output verbatim so a retranslation attempt can use it.
type CompileFailure struct {
	Unit        string
	Diagnostics string
	Cause       error
}

func (e *CompileFailure) Error() string {
	return fmt.Sprintf("compilation of %s failed: %s", e.Unit, firstLine(e.Diagnostics))
}

func (e *CompileFailure) Unwrap() error { return e.Cause }

// TestFailure reports that the synthesized tests ran and did not pass.
type TestFailure struct {
	Unit   string
	Report string
	Cause  error
}

func (e *TestFailure) Error() string {
	return fmt.Sprintf("tests for %s failed: %s", e.Unit, firstLine(e.Report))
}

func (e *TestFailure) Unwrap() error { return e.Cause }

// ToolError reports that the validation toolchain itself is unusable, e.g.
// javac missing from PATH. The verdict becomes INCONCLUSIVE rather than FAIL.
type ToolError struct {
	Message string
	Cause   error
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation tool error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation tool error: %s", e.Message)
}

func (e *ToolError) Unwrap() error { return e.Cause }

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
