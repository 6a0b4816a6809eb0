package layout

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func TestUniqueDirFresh(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")
	if got := UniqueDir(base, fixedNow); got != base {
		t.Errorf("got %q, want %q", got, base)
	}
}

func TestUniqueDirExisting(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")
	if err := os.Mkdir(base, 0o755); err != nil {
		t.Fatal(err)
	}
	want := base + "_20240309140507"
	if got := UniqueDir(base, fixedNow); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if err := os.Mkdir(want, 0o755); err != nil {
		t.Fatal(err)
	}
	want2 := base + "_20240309140507_2"
	if got := UniqueDir(base, fixedNow); got != want2 {
		t.Errorf("got %q, want %q", got, want2)
	}
}

func TestResolveCreatesTree(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")
	l, err := Resolve(base, fixedNow)
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	for _, dir := range []string{l.Root, l.Extract, l.Organized, l.RawImages, l.RawMasks, l.Samples, l.Masked} {
		fi, err := os.Stat(dir)
		if err != nil || !fi.IsDir() {
			t.Errorf("expected directory %s: %v", dir, err)
		}
	}
	if l.RawImages != filepath.Join(base, "15-organized", "image") {
		t.Errorf("raw images: got %q", l.RawImages)
	}
}

func TestResolveNeverReusesExisting(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")
	first, err := Resolve(base, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(first.Samples, "keep.png")
	if err := os.WriteFile(marker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := Resolve(base, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if second.Root == first.Root {
		t.Fatalf("second run reused %q", first.Root)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("first run output was disturbed: %v", err)
	}
}

func TestPaths(t *testing.T) {
	l := New("/out")
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"raw image", l.RawImagePath(3), "/out/15-organized/image/3.png"},
		{"raw mask", l.RawMaskPath(4), "/out/15-organized/mask/4.png"},
		{"sample", l.SamplePath("image+mask", "CopyOpacity", 3), "/out/25-samples/image+mask-CopyOpacity-00003.png"},
		{"composite name", CompositeName(12), "00012.png"},
		{"composite name wide", CompositeName(123456), "123456.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if filepath.ToSlash(tt.got) != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestCompositeDirLazy(t *testing.T) {
	l := New(t.TempDir())
	dir, err := l.CompositeDir("image+mask", "Multiply")
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join(l.Masked, "image+mask", "Multiply") {
		t.Errorf("got %q", dir)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Errorf("expected directory: %v", err)
	}
}
