// Package translate maps COBOL IR to Java source artifacts. The mapping is
// structural: data items become fields preserving width and precision,
// paragraphs become methods, control constructs become their Java
// equivalents. An optional oracle may replace structural method bodies with
// idiomatic ones, but signatures always come from the IR alone.
package translate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/cobol"
)

// DefaultPackage is used when no target package is configured.
const DefaultPackage = "com.migration.cobol"

// Options configures one translation run.
type Options struct {
	Package     string
	TargetStack string
	Oracle      Oracle // optional; nil keeps structural bodies
	// ExtraContext carries compiler diagnostics when the orchestrator retries
	// translation after a compile failure.
	ExtraContext string
}

// MethodSignature is a declared method, published to the test synthesizer.
type MethodSignature struct {
	Paragraph string `json:"paragraph"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

// Result is one translated unit.
type Result struct {
	ClassName  string
	Package    string
	Source     string
	Signatures []MethodSignature
	OracleUsed bool
}

// Translate maps one unit's IR to a Java class. It fails with a
// TranslationError when the IR contains constructs outside the supported
// mapping set, and with OracleUnavailableError when a configured oracle
// cannot be reached.
func Translate(ctx context.Context, unit string, program *cobol.Program, opts Options) (*Result, error) {
	if program == nil {
		return nil, &TranslationError{Unit: unit, NodeRef: "program", Reason: "nil IR"}
	}
	if err := checkSupported(unit, program); err != nil {
		return nil, err
	}

	pkg := opts.Package
	if pkg == "" {
		pkg = DefaultPackage
	}
	className := ClassName(program.ProgramID)

	result := &Result{ClassName: className, Package: pkg}

	var sb strings.Builder
	fmt.Fprintf(&sb, "package %s;\n\n", pkg)
	for _, imp := range requiredImports(program) {
		fmt.Fprintf(&sb, "import %s;\n", imp)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "/**\n * Migrated from COBOL program %s.\n */\n", program.ProgramID)
	fmt.Fprintf(&sb, "public class %s {\n\n", className)
	fmt.Fprintf(&sb, "    private static final Logger logger = Logger.getLogger(%s.class.getName());\n\n", className)

	writeFields(&sb, program)

	for _, paragraph := range program.Paragraphs {
		method := MethodName(paragraph.Name)
		signature := fmt.Sprintf("public void %s()", method)
		result.Signatures = append(result.Signatures, MethodSignature{
			Paragraph: paragraph.Name,
			Name:      method,
			Signature: signature,
		})

		body, usedOracle, err := methodBody(ctx, unit, paragraph, signature, opts)
		if err != nil {
			return nil, err
		}
		result.OracleUsed = result.OracleUsed || usedOracle

		fmt.Fprintf(&sb, "    %s {\n", signature)
		for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
			if strings.TrimSpace(line) == "" {
				sb.WriteString("\n")
				continue
			}
			fmt.Fprintf(&sb, "        %s\n", strings.TrimRight(line, " "))
		}
		sb.WriteString("    }\n\n")
	}

	writeMain(&sb, className, program)
	sb.WriteString("}\n")

	result.Source = sb.String()
	return result, nil
}

// checkSupported rejects IR constructs the mapping set cannot express.
func checkSupported(unit string, program *cobol.Program) error {
	known := make(map[string]bool, len(program.Paragraphs))
	for _, p := range program.Paragraphs {
		known[p.Name] = true
	}
	for _, p := range program.Paragraphs {
		for _, stmt := range p.Statements {
			if stmt.Kind == cobol.StmtPerform && !known[stmt.Target] {
				return &TranslationError{
					Unit:    unit,
					NodeRef: fmt.Sprintf("%s:%d", p.Name, stmt.Line),
					Reason:  fmt.Sprintf("PERFORM of undefined paragraph %s", stmt.Target),
				}
			}
		}
	}
	return nil
}

func requiredImports(program *cobol.Program) []string {
	imports := map[string]bool{"java.util.logging.Logger": true}
	for _, item := range program.DataItems {
		if item.JavaType == "BigDecimal" {
			imports["java.math.BigDecimal"] = true
		}
	}
	sorted := make([]string, 0, len(imports))
	for imp := range imports {
		sorted = append(sorted, imp)
	}
	sort.Strings(sorted)
	return sorted
}

func writeFields(sb *strings.Builder, program *cobol.Program) {
	if len(program.DataItems) == 0 {
		return
	}
	sb.WriteString("    // Data items from WORKING-STORAGE SECTION\n")
	for _, item := range program.DataItems {
		fmt.Fprintf(sb, "    private %s %s = %s;\n", item.JavaType, FieldName(item.Name), fieldInitializer(item))
	}
	sb.WriteString("\n")
	for _, item := range program.DataItems {
		field := FieldName(item.Name)
		fmt.Fprintf(sb, "    public %s %s() {\n        return this.%s;\n    }\n\n", item.JavaType, GetterName(item.Name), field)
	}
}

// fieldInitializer renders the declared VALUE clause, or the type's zero.
func fieldInitializer(item cobol.DataItem) string {
	value := strings.TrimSpace(item.Value)
	switch item.JavaType {
	case "String":
		return fmt.Sprintf("%q", strings.Trim(value, `"'`))
	case "BigDecimal":
		if numeric := filterNumeric(value, true); numeric != "" {
			return fmt.Sprintf("new BigDecimal(%q)", numeric)
		}
		return "BigDecimal.ZERO"
	default: // short, int, long
		if numeric := filterNumeric(value, false); numeric != "" {
			return numeric
		}
		return "0"
	}
}

func filterNumeric(value string, decimal bool) string {
	var sb strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' || (decimal && r == '.') || (sb.Len() == 0 && r == '-') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// methodBody produces the body for one paragraph, consulting the oracle if
// one is configured. An oracle response that fails schema validation degrades
// to the structural body; oracle unavailability propagates so the
// orchestrator can retry the stage.
func methodBody(ctx context.Context, unit string, paragraph cobol.Paragraph, signature string, opts Options) (string, bool, error) {
	if opts.Oracle != nil {
		body, err := opts.Oracle.ProposeBody(ctx, paragraph, signature, opts.ExtraContext)
		if err == nil {
			return body, true, nil
		}
		var unavailable *OracleUnavailableError
		if errors.As(err, &unavailable) {
			return "", false, unavailable
		}
		// Malformed proposal: keep the structural mapping.
	}
	return structuralBody(paragraph), false, nil
}

// structuralBody maps statements one-to-one without oracle involvement.
func structuralBody(paragraph cobol.Paragraph) string {
	if len(paragraph.Statements) == 0 {
		return "// paragraph had no statements"
	}
	var sb strings.Builder
	for _, stmt := range paragraph.Statements {
		sb.WriteString(javaStatement(stmt))
		sb.WriteString("\n")
	}
	return sb.String()
}

func javaStatement(stmt cobol.Statement) string {
	switch stmt.Kind {
	case cobol.StmtMove:
		return fmt.Sprintf("this.%s = %s;", FieldName(stmt.Target), javaOperand(stmt.Source))
	case cobol.StmtCompute:
		return fmt.Sprintf("this.%s = %s;", FieldName(stmt.Target), javaExpression(stmt.Source))
	case cobol.StmtAdd:
		return fmt.Sprintf("this.%s += %s;", FieldName(stmt.Target), javaOperand(stmt.Source))
	case cobol.StmtSubtract:
		return fmt.Sprintf("this.%s -= %s;", FieldName(stmt.Target), javaOperand(stmt.Source))
	case cobol.StmtDisplay:
		return fmt.Sprintf("logger.info(%q);", stmt.Source)
	case cobol.StmtPerform:
		return fmt.Sprintf("%s();", MethodName(stmt.Target))
	case cobol.StmtIf:
		return fmt.Sprintf("if (%s) {\n    logger.fine(\"condition held: %s\");\n}", javaCondition(stmt.Condition), stmt.Condition)
	case cobol.StmtCall:
		return fmt.Sprintf("// external CALL %s retained for manual wiring\nlogger.warning(\"CALL %s not migrated\");", stmt.Target, stmt.Target)
	case cobol.StmtStopRun:
		return "return;"
	default:
		return fmt.Sprintf("// unmapped statement: %s", stmt.Text)
	}
}

// javaOperand renders a MOVE/ADD source: quoted literals stay strings,
// numbers stay numbers, names become field references.
func javaOperand(source string) string {
	source = strings.TrimSpace(source)
	if strings.HasPrefix(source, "'") || strings.HasPrefix(source, "\"") {
		return fmt.Sprintf("%q", strings.Trim(source, `"'`))
	}
	if filterNumeric(source, true) == source && source != "" {
		return source
	}
	return "this." + FieldName(source)
}

func writeMain(sb *strings.Builder, className string, program *cobol.Program) {
	if len(program.Paragraphs) == 0 {
		return
	}
	entry := MethodName(program.Paragraphs[0].Name)
	sb.WriteString("    public static void main(String[] args) {\n")
	fmt.Fprintf(sb, "        %s program = new %s();\n", className, className)
	fmt.Fprintf(sb, "        program.%s();\n", entry)
	sb.WriteString("    }\n")
}
