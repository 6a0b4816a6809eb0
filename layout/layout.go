// Package layout computes and creates the output directory tree.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Subdirectory names relative to the output root.
const (
	ExtractDir   = "10-extract"
	OrganizedDir = "15-organized"
	SamplesDir   = "25-samples"
	MaskedDir    = "30-masked"

	imageSubdir = "image"
	maskSubdir  = "mask"
)

// TimestampFormat is appended to an output path that already exists.
const TimestampFormat = "20060102150405"

// Layout names every directory of one run.
type Layout struct {
	Root      string
	Extract   string
	Organized string
	RawImages string
	RawMasks  string
	Samples   string
	Masked    string
}

// New returns the layout rooted at root without touching the filesystem.
func New(root string) *Layout {
	organized := filepath.Join(root, OrganizedDir)
	return &Layout{
		Root:      root,
		Extract:   filepath.Join(root, ExtractDir),
		Organized: organized,
		RawImages: filepath.Join(organized, imageSubdir),
		RawMasks:  filepath.Join(organized, maskSubdir),
		Samples:   filepath.Join(root, SamplesDir),
		Masked:    filepath.Join(root, MaskedDir),
	}
}

// UniqueDir returns base when nothing exists there. Otherwise it appends
// "_<timestamp>" and, if that is taken as well, a counter, so an existing
// directory is never reused.
func UniqueDir(base string, now time.Time) string {
	if !exists(base) {
		return base
	}
	candidate := base + "_" + now.Format(TimestampFormat)
	for n := 2; exists(candidate); n++ {
		candidate = fmt.Sprintf("%s_%s_%d", base, now.Format(TimestampFormat), n)
	}
	return candidate
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Resolve picks a unique root for base and creates the layout under it.
func Resolve(base string, now time.Time) (*Layout, error) {
	l := New(UniqueDir(base, now))
	if err := l.Create(); err != nil {
		return nil, err
	}
	return l, nil
}

// Create makes every fixed directory of the layout. Per-mode composite
// directories are created later by CompositeDir.
func (l *Layout) Create() error {
	for _, dir := range []string{l.Root, l.Extract, l.Organized, l.RawImages, l.RawMasks, l.Samples, l.Masked} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// CompositeDir returns 30-masked/<label>/<mode>, creating it on first use.
func (l *Layout) CompositeDir(label, mode string) (string, error) {
	dir := filepath.Join(l.Masked, label, mode)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating composite dir: %w", err)
	}
	return dir, nil
}

// CompositeName is the file name of a composite for destination id.
func CompositeName(id int) string {
	return fmt.Sprintf("%05d.png", id)
}

// RawImagePath is where the organized copy of image seq goes.
func (l *Layout) RawImagePath(seq int) string {
	return filepath.Join(l.RawImages, fmt.Sprintf("%d.png", seq))
}

// RawMaskPath is where the organized copy of mask seq goes.
func (l *Layout) RawMaskPath(seq int) string {
	return filepath.Join(l.RawMasks, fmt.Sprintf("%d.png", seq))
}

// SamplePath is where the sample copy of a composite goes.
func (l *Layout) SamplePath(label, mode string, id int) string {
	return filepath.Join(l.Samples, fmt.Sprintf("%s-%s-%05d.png", label, mode, id))
}
