package cobol

import "fmt"

// SourceSpan points at the region of source text a diagnostic refers to.
type SourceSpan struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// ParseError reports a unit whose source cannot be structurally resolved.
// It is terminal for the unit but never for the job: siblings keep going.
type ParseError struct {
	Unit   string
	Reason string
	Span   SourceSpan
}

func (e *ParseError) Error() string {
	if e.Span.StartLine > 0 {
		return fmt.Sprintf("parse error in %s (lines %d-%d): %s", e.Unit, e.Span.StartLine, e.Span.EndLine, e.Reason)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Unit, e.Reason)
}
