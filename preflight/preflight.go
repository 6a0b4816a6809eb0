// Package preflight checks an input PDF before the external tools run.
package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ledongthuc/pdf"
)

// ErrNotFound is returned when the input path does not name a regular file.
var ErrNotFound = errors.New("preflight: input PDF not found")

// Info describes what the PDF reader could learn about the input.
type Info struct {
	Path     string
	Size     int64
	Pages    int
	Readable bool  // false when the PDF reader could not open the file
	Err      error // why the reader failed, when Readable is false
}

// Stat verifies that path is an existing regular file.
func Stat(path string) (fs.FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, path)
	}
	return fi, nil
}

// Inspect stats path and counts its pages. Only a missing file is an
// error: a file the PDF reader cannot parse is reported through
// Info.Readable so the caller can leave the verdict to the extractor.
func Inspect(path string) (*Info, error) {
	fi, err := Stat(path)
	if err != nil {
		return nil, err
	}
	info := &Info{Path: path, Size: fi.Size()}

	pages, err := countPages(path)
	if err != nil {
		info.Err = err
		return info, nil
	}
	info.Pages = pages
	info.Readable = true
	return info, nil
}

func countPages(path string) (n int, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading PDF: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if reader.Page(i).V.IsNull() {
			continue
		}
		n++
	}
	return n, nil
}
