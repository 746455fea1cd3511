package cobol

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	programIDRe   = regexp.MustCompile(`(?i)PROGRAM-ID\.\s+([A-Za-z0-9-]+)`)
	divisionRe    = regexp.MustCompile(`(?i)^\s*(IDENTIFICATION|ENVIRONMENT|DATA|PROCEDURE)\s+DIVISION`)
	dataItemRe    = regexp.MustCompile(`(?i)^\s*(\d{2})\s+([A-Za-z0-9-]+)\s+PIC\s+([^\s.]+)(?:\s+VALUE\s+([^.]+))?\.?`)
	paragraphRe   = regexp.MustCompile(`^\s*([A-Z][A-Z0-9-]*)\s*\.\s*$`)
	fileSelectRe  = regexp.MustCompile(`(?i)^\s*SELECT\s+([A-Za-z0-9-]+)\s+ASSIGN\s+TO\s+([A-Za-z0-9."'-]+)`)
	moveRe        = regexp.MustCompile(`(?i)^MOVE\s+(.+?)\s+TO\s+([A-Za-z0-9-]+)`)
	computeRe     = regexp.MustCompile(`(?i)^COMPUTE\s+([A-Za-z0-9-]+)\s*=\s*(.+)`)
	addRe         = regexp.MustCompile(`(?i)^ADD\s+(.+?)\s+TO\s+([A-Za-z0-9-]+)`)
	subtractRe    = regexp.MustCompile(`(?i)^SUBTRACT\s+(.+?)\s+FROM\s+([A-Za-z0-9-]+)`)
	displayRe     = regexp.MustCompile(`(?i)^DISPLAY\s+(.+)`)
	performRe     = regexp.MustCompile(`(?i)^PERFORM\s+([A-Z0-9-]+)`)
	ifRe          = regexp.MustCompile(`(?i)^IF\s+(.+)`)
	callRe        = regexp.MustCompile(`(?i)^CALL\s+['"]?([A-Za-z0-9-]+)['"]?`)
	stopRunRe     = regexp.MustCompile(`(?i)^STOP\s+RUN`)
	reservedWords = map[string]bool{
		"STOP": true, "DISPLAY": true, "MOVE": true, "ADD": true, "SUBTRACT": true,
		"COMPUTE": true, "PERFORM": true, "IF": true, "ELSE": true, "END-IF": true,
		"EXIT": true, "GOBACK": true,
	}
)

// Parse resolves one COBOL compilation unit into its IR. unit names the
// compilation unit for diagnostics only; the IR depends solely on source.
func Parse(unit, source string) (*Program, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &ParseError{Unit: unit, Reason: "empty source"}
	}

	lines := strings.Split(source, "\n")

	program := &Program{
		Divisions:    []string{},
		DataItems:    []DataItem{},
		Paragraphs:   []Paragraph{},
		FileControls: []FileControl{},
	}

	if m := programIDRe.FindStringSubmatch(source); m != nil {
		program.ProgramID = m[1]
	} else {
		return nil, &ParseError{Unit: unit, Reason: "missing PROGRAM-ID", Span: SourceSpan{StartLine: 1, EndLine: len(lines)}}
	}

	procedureStart := -1
	workingStorageStart := -1
	for i, line := range lines {
		if m := divisionRe.FindStringSubmatch(line); m != nil {
			name := strings.ToUpper(m[1])
			program.Divisions = append(program.Divisions, name)
			if name == "PROCEDURE" {
				procedureStart = i + 1
			}
		}
		if workingStorageStart < 0 && strings.Contains(strings.ToUpper(line), "WORKING-STORAGE SECTION") {
			workingStorageStart = i + 1
		}
		if m := fileSelectRe.FindStringSubmatch(line); m != nil {
			program.FileControls = append(program.FileControls, FileControl{
				FileName: strings.ToUpper(m[1]),
				AssignTo: strings.Trim(m[2], `"'`),
				Line:     i + 1,
			})
		}
	}

	if len(program.Divisions) == 0 {
		return nil, &ParseError{Unit: unit, Reason: "no divisions found", Span: SourceSpan{StartLine: 1, EndLine: len(lines)}}
	}

	if workingStorageStart >= 0 {
		program.DataItems = parseDataItems(lines, workingStorageStart, procedureStart)
	}
	if procedureStart >= 0 {
		paragraphs, err := parseParagraphs(unit, lines, procedureStart)
		if err != nil {
			return nil, err
		}
		program.Paragraphs = paragraphs
	}

	return program, nil
}

// parseDataItems scans WORKING-STORAGE up to the PROCEDURE DIVISION.
func parseDataItems(lines []string, from, until int) []DataItem {
	end := len(lines)
	if until > 0 && until-1 < end {
		end = until - 1
	}

	items := []DataItem{}
	for i := from; i < end; i++ {
		m := dataItemRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		level, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		item := DataItem{
			Level:   level,
			Name:    strings.ToUpper(m[2]),
			Picture: strings.ToUpper(m[3]),
			Line:    i + 1,
		}
		if m[4] != "" {
			item.Value = strings.Trim(strings.TrimSpace(m[4]), `"'`)
		}
		item.JavaType = JavaTypeForPicture(item.Picture)
		items = append(items, item)
	}
	return items
}

// parseParagraphs splits the PROCEDURE DIVISION into named paragraphs with
// their statements in source order.
func parseParagraphs(unit string, lines []string, from int) ([]Paragraph, error) {
	paragraphs := []Paragraph{}
	var current *Paragraph

	for i := from; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "*") {
			continue
		}

		if m := paragraphRe.FindStringSubmatch(line); m != nil && !reservedWords[m[1]] {
			if current != nil {
				paragraphs = append(paragraphs, *current)
			}
			current = &Paragraph{Name: m[1], Statements: []Statement{}, Line: i + 1}
			continue
		}

		stmt := classifyStatement(trimmed, i+1)
		if current == nil {
			// Statements before any paragraph belong to an implicit MAIN.
			current = &Paragraph{Name: "MAIN", Statements: []Statement{}, Line: i + 1}
		}
		current.Statements = append(current.Statements, stmt)
	}
	if current != nil {
		paragraphs = append(paragraphs, *current)
	}

	if len(paragraphs) == 0 {
		return nil, &ParseError{Unit: unit, Reason: "PROCEDURE DIVISION has no paragraphs", Span: SourceSpan{StartLine: from + 1, EndLine: len(lines)}}
	}
	return paragraphs, nil
}

func classifyStatement(text string, line int) Statement {
	text = strings.TrimSuffix(text, ".")
	stmt := Statement{Kind: StmtOther, Text: text, Line: line}

	switch {
	case stopRunRe.MatchString(text):
		stmt.Kind = StmtStopRun
	case moveRe.MatchString(text):
		m := moveRe.FindStringSubmatch(text)
		stmt.Kind = StmtMove
		stmt.Source = strings.TrimSpace(m[1])
		stmt.Target = strings.ToUpper(m[2])
	case computeRe.MatchString(text):
		m := computeRe.FindStringSubmatch(text)
		stmt.Kind = StmtCompute
		stmt.Target = strings.ToUpper(m[1])
		stmt.Source = strings.TrimSpace(m[2])
	case addRe.MatchString(text):
		m := addRe.FindStringSubmatch(text)
		stmt.Kind = StmtAdd
		stmt.Source = strings.TrimSpace(m[1])
		stmt.Target = strings.ToUpper(m[2])
	case subtractRe.MatchString(text):
		m := subtractRe.FindStringSubmatch(text)
		stmt.Kind = StmtSubtract
		stmt.Source = strings.TrimSpace(m[1])
		stmt.Target = strings.ToUpper(m[2])
	case displayRe.MatchString(text):
		m := displayRe.FindStringSubmatch(text)
		stmt.Kind = StmtDisplay
		stmt.Source = strings.Trim(strings.TrimSpace(m[1]), `"'`)
	case performRe.MatchString(text):
		m := performRe.FindStringSubmatch(text)
		stmt.Kind = StmtPerform
		stmt.Target = strings.ToUpper(m[1])
	case ifRe.MatchString(text):
		m := ifRe.FindStringSubmatch(text)
		stmt.Kind = StmtIf
		stmt.Condition = strings.TrimSpace(m[1])
	case callRe.MatchString(text):
		m := callRe.FindStringSubmatch(text)
		stmt.Kind = StmtCall
		stmt.Target = strings.ToUpper(m[1])
	}
	return stmt
}
