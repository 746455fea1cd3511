// Package cobol parses COBOL compilation units into a structured intermediate
// representation. Parsing is a pure function of the source text: identical
// input always yields byte-identical IR, which downstream stages rely on for
// caching and reproducible test synthesis.
package cobol

// StatementKind classifies a procedure statement.
type StatementKind string

const (
	StmtMove     StatementKind = "MOVE"
	StmtCompute  StatementKind = "COMPUTE"
	StmtAdd      StatementKind = "ADD"
	StmtSubtract StatementKind = "SUBTRACT"
	StmtDisplay  StatementKind = "DISPLAY"
	StmtPerform  StatementKind = "PERFORM"
	StmtIf       StatementKind = "IF"
	StmtCall     StatementKind = "CALL"
	StmtStopRun  StatementKind = "STOP_RUN"
	StmtOther    StatementKind = "OTHER"
)

// Statement is one procedure-division statement in source order.
type Statement struct {
	Kind      StatementKind `json:"kind"`
	Target    string        `json:"target,omitempty"`    // MOVE/COMPUTE/ADD destination
	Source    string        `json:"source,omitempty"`    // operand, expression or literal
	Condition string        `json:"condition,omitempty"` // IF condition text
	Text      string        `json:"text"`                // raw statement text
	Line      int           `json:"line"`
}

// DataItem is one WORKING-STORAGE declaration.
type DataItem struct {
	Level    int    `json:"level"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
	Value    string `json:"value,omitempty"`
	JavaType string `json:"java_type"`
	Line     int    `json:"line"`
}

// Paragraph is a named sequence of statements.
type Paragraph struct {
	Name       string      `json:"name"`
	Statements []Statement `json:"statements"`
	Line       int         `json:"line"`
}

// FileControl is a SELECT ... ASSIGN entry from the ENVIRONMENT DIVISION.
type FileControl struct {
	FileName string `json:"file_name"`
	AssignTo string `json:"assign_to"`
	Line     int    `json:"line"`
}

// Program is the IR for one compilation unit.
type Program struct {
	ProgramID    string        `json:"program_id"`
	Divisions    []string      `json:"divisions"`
	DataItems    []DataItem    `json:"data_items"`
	Paragraphs   []Paragraph   `json:"paragraphs"`
	FileControls []FileControl `json:"file_controls"`
}

// Paragraph returns the named paragraph, or nil.
func (p *Program) Paragraph(name string) *Paragraph {
	for i := range p.Paragraphs {
		if p.Paragraphs[i].Name == name {
			return &p.Paragraphs[i]
		}
	}
	return nil
}

// DataItem returns the named data item, or nil.
func (p *Program) DataItem(name string) *DataItem {
	for i := range p.DataItems {
		if p.DataItems[i].Name == name {
			return &p.DataItems[i]
		}
	}
	return nil
}
