package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestScanOrdersUnitsLexicographically(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/zeta.cbl", "PROGRAM-ID. ZETA.\n")
	writeFile(t, dir, "src/alpha.cob", "PROGRAM-ID. ALPHA.\nCOPY PAYLIB.\n")
	writeFile(t, dir, "lib/common.cpy", "01 WS-X PIC X.\n")
	writeFile(t, dir, "batch/run.jcl", "//JOB\n")
	writeFile(t, dir, "README.md", "not cobol\n")

	inv, err := Scan("repos/demo", dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(inv.Units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(inv.Units))
	}
	if inv.Units[0].Path != "src/alpha.cob" || inv.Units[1].Path != "src/zeta.cbl" {
		t.Errorf("units out of order: %s, %s", inv.Units[0].Path, inv.Units[1].Path)
	}
	if inv.Units[0].Name != "ALPHA" {
		t.Errorf("logical name = %q, want ALPHA", inv.Units[0].Name)
	}
	if len(inv.Units[0].Copybooks) != 1 || inv.Units[0].Copybooks[0] != "PAYLIB" {
		t.Errorf("copybook references: %v", inv.Units[0].Copybooks)
	}
	if len(inv.SupportFiles) != 2 {
		t.Errorf("expected 2 support files, got %d", len(inv.SupportFiles))
	}

	// A rerun enumerates identically.
	again, err := Scan("repos/demo", dir)
	if err != nil {
		t.Fatalf("rescan failed: %v", err)
	}
	for i := range inv.Units {
		if again.Units[i].Path != inv.Units[i].Path {
			t.Errorf("rescan unit %d = %s, want %s", i, again.Units[i].Path, inv.Units[i].Path)
		}
	}
}

func TestScanEmptySnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "nothing here\n")

	_, err := Scan("repos/empty", dir)
	var scanErr *ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("expected ScanError, got %v", err)
	}
}

func TestScanUnreachableSnapshot(t *testing.T) {
	_, err := Scan("repos/missing", filepath.Join(t.TempDir(), "does-not-exist"))
	var scanErr *ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("expected ScanError, got %v", err)
	}
}
