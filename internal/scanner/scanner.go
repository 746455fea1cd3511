// Package scanner walks a repository snapshot and produces the unit-of-work
// inventory for a migration job.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	cobolExtensions    = map[string]bool{".cbl": true, ".cob": true, ".cobol": true}
	copybookExtensions = map[string]bool{".cpy": true, ".copy": true}
	jclExtensions      = map[string]bool{".jcl": true}
)

// ScanError reports an unreachable snapshot or a snapshot with no eligible
// source files. It is fatal for the whole job.
type ScanError struct {
	RepoRef string
	Reason  string
	Cause   error
}

func (e *ScanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scan of %s failed: %s: %v", e.RepoRef, e.Reason, e.Cause)
	}
	return fmt.Sprintf("scan of %s failed: %s", e.RepoRef, e.Reason)
}

func (e *ScanError) Unwrap() error { return e.Cause }

// UnitDescriptor identifies one COBOL compilation unit to migrate.
type UnitDescriptor struct {
	Path         string   `json:"path"`          // relative to the snapshot root
	AbsolutePath string   `json:"absolute_path"`
	Name         string   `json:"name"` // logical name, file stem uppercased
	SizeBytes    int64    `json:"size_bytes"`
	LinesOfCode  int      `json:"lines_of_code"`
	Copybooks    []string `json:"copybooks,omitempty"` // COPY targets referenced
}

// SupportFile is a copybook or JCL member catalogued alongside the units.
type SupportFile struct {
	Path string `json:"path"`
	Kind string `json:"kind"` // "copybook" or "jcl"
}

// Inventory is the result of scanning one snapshot.
type Inventory struct {
	Units        []UnitDescriptor `json:"units"`
	SupportFiles []SupportFile    `json:"support_files,omitempty"`
}

// Scan walks the snapshot rooted at snapshotPath and returns the inventory.
// Ordering is lexicographic by relative path so reruns enumerate units
// identically. Zero eligible units is a ScanError.
func Scan(repoRef, snapshotPath string) (*Inventory, error) {
	info, err := os.Stat(snapshotPath)
	if err != nil {
		return nil, &ScanError{RepoRef: repoRef, Reason: "snapshot unreachable", Cause: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{RepoRef: repoRef, Reason: "snapshot is not a directory"}
	}

	inv := &Inventory{}
	err = filepath.WalkDir(snapshotPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		rel, relErr := filepath.Rel(snapshotPath, path)
		if relErr != nil {
			return relErr
		}
		switch {
		case cobolExtensions[ext]:
			unit, err := describeUnit(path, rel)
			if err != nil {
				return err
			}
			inv.Units = append(inv.Units, unit)
		case copybookExtensions[ext]:
			inv.SupportFiles = append(inv.SupportFiles, SupportFile{Path: rel, Kind: "copybook"})
		case jclExtensions[ext]:
			inv.SupportFiles = append(inv.SupportFiles, SupportFile{Path: rel, Kind: "jcl"})
		}
		return nil
	})
	if err != nil {
		return nil, &ScanError{RepoRef: repoRef, Reason: "walk failed", Cause: err}
	}

	if len(inv.Units) == 0 {
		return nil, &ScanError{RepoRef: repoRef, Reason: "no eligible COBOL source files"}
	}

	sort.Slice(inv.Units, func(i, j int) bool { return inv.Units[i].Path < inv.Units[j].Path })
	sort.Slice(inv.SupportFiles, func(i, j int) bool { return inv.SupportFiles[i].Path < inv.SupportFiles[j].Path })
	return inv, nil
}

func describeUnit(absPath, relPath string) (UnitDescriptor, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return UnitDescriptor{}, err
	}

	stem := strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath))
	unit := UnitDescriptor{
		Path:         filepath.ToSlash(relPath),
		AbsolutePath: absPath,
		Name:         strings.ToUpper(stem),
		SizeBytes:    int64(len(content)),
	}

	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "*") {
			continue
		}
		unit.LinesOfCode++
		upper := strings.ToUpper(trimmed)
		if strings.HasPrefix(upper, "COPY ") {
			name := strings.TrimSuffix(strings.Fields(upper)[1], ".")
			unit.Copybooks = append(unit.Copybooks, name)
		}
	}
	return unit, nil
}
