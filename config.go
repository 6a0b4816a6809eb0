package maskmerge

import (
	"log/slog"
	"path/filepath"

	"github.com/brunobiangulo/maskmerge/compose"
	"github.com/brunobiangulo/maskmerge/report"
	"github.com/brunobiangulo/maskmerge/runner"
)

// Config holds all configuration for a maskmerge pipeline.
type Config struct {
	// ExtractorPath is the image extractor/lister binary (poppler's pdfimages).
	ExtractorPath string `json:"extractor_path" yaml:"extractor_path"`

	// ConvertPath is the ImageMagick binary used by the "magick" compositor.
	ConvertPath string `json:"convert_path" yaml:"convert_path"`

	// Compositor selects the backend: "magick" (default) or "native".
	Compositor string `json:"compositor" yaml:"compositor"`

	// BlendModes are applied in order to every image/smask pair.
	BlendModes []string `json:"blend_modes" yaml:"blend_modes"`

	// SampleID is the image sequence number whose composites are copied
	// to the samples folder.
	SampleID int `json:"sample_id" yaml:"sample_id"`

	// PairLabel names the composite folder of image/smask pairs.
	PairLabel string `json:"pair_label" yaml:"pair_label"`

	// ImagePrefix is the file name prefix handed to the extractor.
	ImagePrefix string `json:"image_prefix" yaml:"image_prefix"`

	// DuplicatePolicy decides what a second record of the same kind on one
	// object does: "overwrite" (default), "keep-first" or "reject".
	DuplicatePolicy string `json:"duplicate_policy" yaml:"duplicate_policy"`

	// Preflight opens the PDF with a Go reader before running tools.
	Preflight bool `json:"preflight" yaml:"preflight"`

	// Manifest records the run in a SQLite database.
	Manifest bool `json:"manifest" yaml:"manifest"`

	// ManifestPath overrides the database location (default <out>/manifest.db).
	ManifestPath string `json:"manifest_path" yaml:"manifest_path"`

	// DuplicateThreshold is the signature distance under which two staged
	// images are reported as probable duplicates. Zero disables the check.
	DuplicateThreshold float64 `json:"duplicate_threshold" yaml:"duplicate_threshold"`

	// Report writes an XLSX inventory of the run.
	Report bool `json:"report" yaml:"report"`

	// Runner executes external programs. Defaults to runner.ExecRunner.
	Runner runner.Runner `json:"-" yaml:"-"`

	// Logger receives progress output. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// ManifestFile is the default manifest name inside the output directory.
const ManifestFile = "manifest.db"

// DefaultConfig returns a Config that drives poppler's pdfimages and
// ImageMagick's convert found on PATH.
func DefaultConfig() Config {
	return Config{
		ExtractorPath:      "pdfimages",
		ConvertPath:        "convert",
		Compositor:         compose.BackendMagick,
		BlendModes:         []string{compose.DefaultMode},
		SampleID:           1,
		PairLabel:          "image+mask",
		ImagePrefix:        "image",
		DuplicatePolicy:    "overwrite",
		Preflight:          true,
		Manifest:           true,
		DuplicateThreshold: 0.02,
		Report:             true,
	}
}

// resolveManifestPath computes the database path for a run rooted at dir.
func (c *Config) resolveManifestPath(dir string) string {
	if c.ManifestPath != "" {
		return c.ManifestPath
	}
	return filepath.Join(dir, ManifestFile)
}

func (c *Config) reportPath(dir string) string {
	return filepath.Join(dir, report.FileName)
}
