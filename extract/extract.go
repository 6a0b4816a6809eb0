// Package extract drives the external image extractor and indexes the
// files it writes by their sequence number.
package extract

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/brunobiangulo/maskmerge/runner"
)

// Index maps an extractor sequence number to the absolute path of the
// file written for it.
type Index struct {
	paths map[int]string
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{paths: make(map[int]string)}
}

// Set records path for seq, replacing any earlier entry.
func (ix *Index) Set(seq int, path string) {
	ix.paths[seq] = path
}

// Lookup returns the file extracted for seq.
func (ix *Index) Lookup(seq int) (string, bool) {
	p, ok := ix.paths[seq]
	return p, ok
}

// Len returns the number of indexed files.
func (ix *Index) Len() int { return len(ix.paths) }

// Sequences returns the indexed sequence numbers in ascending order.
func (ix *Index) Sequences() []int {
	seqs := make([]int, 0, len(ix.paths))
	for s := range ix.paths {
		seqs = append(seqs, s)
	}
	sort.Ints(seqs)
	return seqs
}

// Extractor runs the external extractor (pdfimages) over a whole PDF.
type Extractor struct {
	Path   string // extractor binary, e.g. "pdfimages"
	Prefix string // output name prefix, e.g. "image"
	Runner runner.Runner
	Logger *slog.Logger
}

// Extract writes one PNG per embedded image into dir and returns the
// index of what was written.
func (e *Extractor) Extract(ctx context.Context, pdfPath, dir string) (*Index, error) {
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	prefix := e.Prefix
	if prefix == "" {
		prefix = "image"
	}

	cmd := runner.Command{
		Name: e.Path,
		Args: []string{"-png", pdfPath, filepath.Join(dir, prefix)},
	}
	log.Info("extract: running extractor", "dir", dir)
	log.Debug("extract: command", "command", cmd.String())
	if _, err := runner.Check(ctx, e.Runner, cmd); err != nil {
		return nil, err
	}

	ix, err := ScanDir(dir, log)
	if err != nil {
		return nil, err
	}
	log.Info("extract: gathered extracted images", "count", ix.Len())
	return ix, nil
}

// ScanDir indexes every file below dir whose name has the form
// <prefix>-<sequence>.<ext>. Subdirectories are walked too. Files that do
// not follow the pattern are skipped with a warning. When two files carry
// the same sequence number the one walked last wins.
func ScanDir(dir string, log *slog.Logger) (*Index, error) {
	if log == nil {
		log = slog.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving extract dir: %w", err)
	}

	ix := NewIndex()
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		seq, ok := ParseSequence(d.Name())
		if !ok {
			log.Warn("extract: skipping file without sequence number", "file", path)
			return nil
		}
		if prev, dup := ix.Lookup(seq); dup {
			log.Debug("extract: duplicate sequence number", "sequence", seq, "previous", prev, "file", path)
		}
		ix.Set(seq, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning extract dir: %w", err)
	}
	return ix, nil
}

// ParseSequence extracts the sequence number from a file name of the form
// <prefix>-<sequence>.<ext>, e.g. "image-007.png" -> 7.
func ParseSequence(name string) (int, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndexByte(stem, '-')
	if i < 0 || i == len(stem)-1 {
		return 0, false
	}
	digits := stem[i+1:]
	for j := 0; j < len(digits); j++ {
		if digits[j] < '0' || digits[j] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
