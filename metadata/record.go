// Package metadata turns the tabular image report printed by the external
// lister (pdfimages -list) into records grouped by PDF object id.
package metadata

import (
	"strconv"
	"strings"
)

// Optional holds a value that may be missing from a report line.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// Get returns the value and whether it was present. A missing value is
// returned as the zero value of T.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// Or returns the value, or def when it is missing.
func (o Optional[T]) Or(def T) T {
	if !o.ok {
		return def
	}
	return o.value
}

// Present reports whether the value was set.
func (o Optional[T]) Present() bool { return o.ok }

// ImageRecord is one row of the lister's report.
type ImageRecord struct {
	Page             Optional[int]
	SequenceNumber   int // "num": the extractor's per-image ordinal
	Kind             string
	Width            Optional[int]
	Height           Optional[int]
	ColorSpace       Optional[string]
	Components       Optional[int]
	BitsPerComponent Optional[int]
	Encoding         Optional[string]
	Interpolate      Optional[string]
	ObjectID         int
	Generation       Optional[int]
	XPPI             Optional[int]
	YPPI             Optional[int]
	Size             Optional[string]
	Ratio            Optional[string]

	// Line is the raw report line the record was parsed from.
	Line string
}

// Column order of the report rows.
const (
	colPage = iota
	colNum
	colType
	colWidth
	colHeight
	colColor
	colComp
	colBPC
	colEnc
	colInterp
	colObject
	colID
	colXPPI
	colYPPI
	colSize
	colRatio
	numColumns
)

// ParseLine maps the whitespace-separated tokens of line onto the fixed
// column order. It never fails: columns beyond the last token stay unset,
// and numeric columns that do not hold a plain decimal number are left
// unset (or zero for the sequence number and object id).
func ParseLine(line string) ImageRecord {
	tok := strings.Fields(line)
	rec := ImageRecord{Line: line}

	str := func(i int) Optional[string] {
		if i < len(tok) {
			return Some(tok[i])
		}
		return Optional[string]{}
	}
	num := func(i int) Optional[int] {
		if i < len(tok) {
			if n, ok := atoi(tok[i]); ok {
				return Some(n)
			}
		}
		return Optional[int]{}
	}

	rec.Page = num(colPage)
	rec.SequenceNumber = num(colNum).Or(0)
	rec.Kind = str(colType).Or("")
	rec.Width = num(colWidth)
	rec.Height = num(colHeight)
	rec.ColorSpace = str(colColor)
	rec.Components = num(colComp)
	rec.BitsPerComponent = num(colBPC)
	rec.Encoding = str(colEnc)
	rec.Interpolate = str(colInterp)
	rec.ObjectID = num(colObject).Or(0)
	rec.Generation = num(colID)
	rec.XPPI = num(colXPPI)
	rec.YPPI = num(colYPPI)
	rec.Size = str(colSize)
	rec.Ratio = str(colRatio)
	return rec
}

// atoi accepts only non-empty runs of ASCII digits, so signs and
// fractions count as non-numeric.
func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Admitted reports whether the record describes an image or a soft mask.
// Other kinds, such as stencil masks, are not of interest.
func (r ImageRecord) Admitted() bool {
	return strings.Contains(r.Kind, KindImage) || strings.Contains(r.Kind, KindSMask)
}
