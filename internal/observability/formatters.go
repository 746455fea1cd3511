// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/cobol"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/scanner"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/store"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintJob outputs a human-readable summary of a job.
func (p *Printer) PrintJob(job *store.Job) {
	if job == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", job.ID))
	sb.WriteString(fmt.Sprintf("Repo:     %s\n", job.RepoRef))
	sb.WriteString(fmt.Sprintf("Branch:   %s\n", job.Branch))
	sb.WriteString(fmt.Sprintf("Target:   %s\n", job.TargetStack))
	sb.WriteString(fmt.Sprintf("Status:   %s (%d%%)", job.Status, job.Progress))
	if job.LastError != "" {
		sb.WriteString(fmt.Sprintf("\nError:    %s", job.LastError))
	}
	if job.Metrics != nil {
		sb.WriteString(fmt.Sprintf("\n\nUnits:    %d total, %d passed, %d failed, %d for review",
			job.Metrics.UnitsTotal, job.Metrics.UnitsPassed,
			job.Metrics.UnitsFailed, job.Metrics.UnitsNeedsReview))
	}

	p.printBox("MIGRATION JOB", sb.String())
}

// PrintInventory outputs the scan result for a repository snapshot.
func (p *Printer) PrintInventory(inv *scanner.Inventory) {
	if inv == nil || len(inv.Units) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d compilation units:\n\n", len(inv.Units)))

	count := min(len(inv.Units), maxItemsToShow)
	for i := 0; i < count; i++ {
		unit := inv.Units[i]
		sb.WriteString(fmt.Sprintf("• %s\n", unit.Path))
		sb.WriteString(fmt.Sprintf("  %d lines", unit.LinesOfCode))
		if len(unit.Copybooks) > 0 {
			copybooks := strings.Join(unit.Copybooks, ", ")
			if len(copybooks) > 30 {
				copybooks = copybooks[:27] + "..."
			}
			sb.WriteString(fmt.Sprintf(", copies: %s", copybooks))
		}
		sb.WriteString("\n")
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(inv.Units) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more units", len(inv.Units)-maxItemsToShow))
	}
	if len(inv.SupportFiles) > 0 {
		sb.WriteString(fmt.Sprintf("\n\nSupport files: %d (copybooks, JCL)", len(inv.SupportFiles)))
	}

	p.printBox("REPOSITORY INVENTORY", sb.String())
}

// PrintProgram outputs a summary of a parsed COBOL program.
func (p *Printer) PrintProgram(program *cobol.Program) {
	if program == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Program:  %s\n", program.ProgramID))
	sb.WriteString(fmt.Sprintf("Divisions: %s\n\n", strings.Join(program.Divisions, ", ")))

	if len(program.DataItems) > 0 {
		sb.WriteString("Data Items:\n")
		count := min(len(program.DataItems), maxItemsToShow)
		for i := 0; i < count; i++ {
			item := program.DataItems[i]
			sb.WriteString(fmt.Sprintf("  • %s PIC %s -> %s\n", item.Name, item.Picture, item.JavaType))
		}
		if len(program.DataItems) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(program.DataItems)-maxItemsToShow))
		}
		sb.WriteString("\n")
	}

	if len(program.Paragraphs) > 0 {
		sb.WriteString("Paragraphs:\n")
		count := min(len(program.Paragraphs), maxItemsToShow)
		for i := 0; i < count; i++ {
			para := program.Paragraphs[i]
			sb.WriteString(fmt.Sprintf("  • %s (%d statements)\n", para.Name, len(para.Statements)))
		}
		if len(program.Paragraphs) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(program.Paragraphs)-maxItemsToShow))
		}
	}

	p.printBox("PARSED PROGRAM", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintUnits outputs the per-unit outcome table for a finished job.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintUnits(units []store.Unit) {
	if len(units) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "NO UNITS DISCOVERED")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	for i, unit := range units {
		marker := "⚠"
		if unit.Status == store.UnitPassed {
			marker = "✓"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", marker, unit.SourcePath))
		sb.WriteString(fmt.Sprintf("  %s", unit.Status))
		if attempts := unit.StageAttempts(store.StageTranslate); attempts > 1 {
			sb.WriteString(fmt.Sprintf(" (%d translation attempts)", attempts))
		}
		sb.WriteString("\n")
		if unit.LastError != "" {
			errText := unit.LastError
			if len(errText) > 45 {
				errText = errText[:42] + "..."
			}
			sb.WriteString(fmt.Sprintf("  %s\n", errText))
		}
		if i < len(units)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("UNIT OUTCOMES", strings.TrimSuffix(sb.String(), "\n"))
}
