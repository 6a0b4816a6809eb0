package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInspectMissing(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "missing.pdf"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInspectDirectory(t *testing.T) {
	_, err := Inspect(t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a directory, got %v", err)
	}
}

func TestInspectUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Readable {
		t.Error("junk file should not be readable")
	}
	if info.Err == nil {
		t.Error("expected reader error to be recorded")
	}
	if info.Size != int64(len("this is not a pdf")) {
		t.Errorf("size: got %d", info.Size)
	}
}

// buildPDF assembles a single empty page with a valid cross-reference table.
func buildPDF() []byte {
	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] >>\nendobj\n",
	}
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		b.WriteString(obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func TestInspectMinimalPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.pdf")
	if err := os.WriteFile(path, buildPDF(), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("inspecting: %v", err)
	}
	if !info.Readable {
		t.Fatalf("expected readable PDF, reader said: %v", info.Err)
	}
	if info.Pages != 1 {
		t.Errorf("pages: got %d, want 1", info.Pages)
	}
}
