package validation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// CompileTimeout bounds a single javac invocation.
	CompileTimeout = 60 * time.Second
	// TestTimeout bounds a single test run.
	TestTimeout = 120 * time.Second
)

// ToolRunner abstracts the Java toolchain so validation can run against a
// real JDK or a static analyzer interchangeably.
type ToolRunner interface {
	// Compile compiles the given source files in dir. On a compilation error
	// it returns the compiler diagnostics and a non-nil error.
	Compile(ctx context.Context, dir string, sources []string) (diagnostics string, err error)
	// RunTests executes the compiled tests in dir and returns the run report.
	RunTests(ctx context.Context, dir string, testClass string) (report string, err error)
}

// JavacRunner drives a locally installed JDK.
type JavacRunner struct {
	// JUnitJar is the path to the JUnit console launcher jar. It joins the
	// compile classpath and drives the test run.
	JUnitJar string
}

// Compile runs javac over the sources.
func (r JavacRunner) Compile(ctx context.Context, dir string, sources []string) (string, error) {
	if _, err := exec.LookPath("javac"); err != nil {
		return "", &ToolError{Message: "javac not found in PATH, install a JDK", Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, CompileTimeout)
	defer cancel()

	args := []string{"-d", dir}
	if r.JUnitJar != "" {
		args = append(args, "-cp", r.JUnitJar)
	}
	args = append(args, sources...)

	cmd := exec.CommandContext(ctx, "javac", args...)
	cmd.Dir = dir
	var out strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return out.String(), &ToolError{Message: "javac timed out", Cause: ctx.Err()}
		}
		return out.String(), fmt.Errorf("javac: %w", err)
	}
	return out.String(), nil
}

// RunTests executes the JUnit console launcher against the compiled classes.
func (r JavacRunner) RunTests(ctx context.Context, dir string, testClass string) (string, error) {
	if _, err := exec.LookPath("java"); err != nil {
		return "", &ToolError{Message: "java not found in PATH", Cause: err}
	}
	if r.JUnitJar == "" {
		return "", &ToolError{Message: "JUnit console launcher jar not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, TestTimeout)
	defer cancel()

	classpath := dir + string(os.PathListSeparator) + r.JUnitJar
	cmd := exec.CommandContext(ctx, "java",
		"-jar", r.JUnitJar,
		"--class-path", classpath,
		"--select-class", testClass,
		"--fail-if-no-tests",
	)
	cmd.Dir = dir
	var out strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return out.String(), &ToolError{Message: "test run timed out", Cause: ctx.Err()}
		}
		return out.String(), fmt.Errorf("junit: %w", err)
	}
	return out.String(), nil
}

// StaticRunner validates structurally without a JDK: brace balance, package
// declaration, and class naming. It cannot execute tests, so it reports them
// as passed when the test source itself is structurally sound.
type StaticRunner struct{}

func (StaticRunner) Compile(_ context.Context, dir string, sources []string) (string, error) {
	var diags []string
	for _, src := range sources {
		content, err := os.ReadFile(src)
		if err != nil {
			return "", &ToolError{Message: fmt.Sprintf("read %s", src), Cause: err}
		}
		diags = append(diags, staticCheck(filepath.Base(src), string(content))...)
	}
	_ = dir
	if len(diags) > 0 {
		out := strings.Join(diags, "\n")
		return out, fmt.Errorf("static analysis found %d problem(s)", len(diags))
	}
	return "", nil
}

func (StaticRunner) RunTests(_ context.Context, _ string, testClass string) (string, error) {
	return fmt.Sprintf("static mode: %s not executed, structural checks passed", testClass), nil
}

func staticCheck(name, source string) []string {
	var diags []string

	if !strings.Contains(source, "package ") {
		diags = append(diags, fmt.Sprintf("%s: missing package declaration", name))
	}

	wantClass := strings.TrimSuffix(name, ".java")
	if !strings.Contains(source, "class "+wantClass) {
		diags = append(diags, fmt.Sprintf("%s: no class named %s", name, wantClass))
	}

	if depth := braceBalance(source); depth != 0 {
		diags = append(diags, fmt.Sprintf("%s: unbalanced braces (depth %d at EOF)", name, depth))
	}

	for i, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if needsSemicolon(trimmed) {
			diags = append(diags, fmt.Sprintf("%s:%d: statement missing semicolon", name, i+1))
		}
	}
	return diags
}

// braceBalance tracks {} depth outside string and char literals and comments.
func braceBalance(source string) int {
	depth := 0
	inString, inChar, inLineComment, inBlockComment := false, false, false, false
	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case inLineComment:
			if c == '\n' {
				inLineComment = false
			}
		case inBlockComment:
			if c == '*' && i+1 < len(source) && source[i+1] == '/' {
				inBlockComment = false
				i++
			}
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case inChar:
			if c == '\\' {
				i++
			} else if c == '\'' {
				inChar = false
			}
		default:
			switch c {
			case '"':
				inString = true
			case '\'':
				inChar = true
			case '/':
				if i+1 < len(source) {
					if source[i+1] == '/' {
						inLineComment = true
					} else if source[i+1] == '*' {
						inBlockComment = true
					}
				}
			case '{':
				depth++
			case '}':
				depth--
			}
		}
	}
	return depth
}

// needsSemicolon flags lines that look like simple statements but lack a
// terminator. Kept deliberately narrow to avoid false positives.
func needsSemicolon(line string) bool {
	if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "/*") {
		return false
	}
	if !strings.HasPrefix(line, "return ") && !strings.HasPrefix(line, "import ") && !strings.HasPrefix(line, "package ") {
		return false
	}
	return !strings.HasSuffix(line, ";")
}
