package translate

import (
	"regexp"
	"strings"
)

var cobolIdentifierRe = regexp.MustCompile(`[A-Za-z][A-Za-z0-9]*(?:-[A-Za-z0-9]+)+`)

// FieldName converts a COBOL data name to a Java field name:
// WS-GROSS-PAY -> wsGrossPay.
func FieldName(cobolName string) string {
	return lowerCamel(cobolName)
}

// MethodName converts a COBOL paragraph name to a Java method name:
// MAIN-PARA -> mainPara.
func MethodName(paragraphName string) string {
	return lowerCamel(paragraphName)
}

// GetterName converts a COBOL data name to its accessor name:
// WS-GROSS-PAY -> getWsGrossPay.
func GetterName(cobolName string) string {
	name := lowerCamel(cobolName)
	if name == "" {
		return "get"
	}
	return "get" + strings.ToUpper(name[:1]) + name[1:]
}

// ClassName converts a COBOL program name to a Java class name:
// payroll-calc -> PayrollCalc.
func ClassName(programName string) string {
	name := lowerCamel(programName)
	if name == "" {
		return "Migrated"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func lowerCamel(cobolName string) string {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(cobolName)), "-")
	var sb strings.Builder
	for i, part := range parts {
		part = strings.TrimFunc(part, func(r rune) bool {
			return (r < 'a' || r > 'z') && (r < '0' || r > '9')
		})
		if part == "" {
			continue
		}
		if i == 0 || sb.Len() == 0 {
			sb.WriteString(part)
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]))
		sb.WriteString(part[1:])
	}
	return sb.String()
}

// javaExpression rewrites COBOL identifiers inside an expression or condition
// into their Java field names.
func javaExpression(expr string) string {
	return cobolIdentifierRe.ReplaceAllStringFunc(expr, FieldName)
}

// javaCondition rewrites a COBOL condition into Java syntax.
func javaCondition(cond string) string {
	out := javaExpression(cond)
	out = strings.ReplaceAll(out, " NOT = ", " != ")
	out = strings.ReplaceAll(out, " = ", " == ")
	out = strings.ReplaceAll(out, " AND ", " && ")
	out = strings.ReplaceAll(out, " OR ", " || ")
	return out
}
