package maskmerge

import (
	"errors"

	"github.com/brunobiangulo/maskmerge/pairing"
	"github.com/brunobiangulo/maskmerge/preflight"
)

var (
	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("maskmerge: invalid configuration")

	// ErrNoBlendModes is returned when the configuration lists no blend mode.
	ErrNoBlendModes = errors.New("maskmerge: no blend modes configured")

	// ErrInputNotFound is returned when the input PDF does not exist.
	ErrInputNotFound = preflight.ErrNotFound

	// ErrDanglingReference is returned when the image list names a
	// sequence number the extractor wrote no file for.
	ErrDanglingReference = pairing.ErrDanglingReference

	// ErrManifestFailed is returned when the run manifest cannot be written.
	ErrManifestFailed = errors.New("maskmerge: writing manifest failed")

	// ErrReportFailed is returned when the XLSX report cannot be written.
	ErrReportFailed = errors.New("maskmerge: writing report failed")
)
