// Package maskmerge extracts the raster images embedded in a PDF, pairs
// each image with its soft mask by PDF object id, composites every pair
// under the configured blend modes and lays the results out in a fixed
// directory tree.
package maskmerge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/brunobiangulo/maskmerge/compose"
	"github.com/brunobiangulo/maskmerge/extract"
	"github.com/brunobiangulo/maskmerge/layout"
	"github.com/brunobiangulo/maskmerge/metadata"
	"github.com/brunobiangulo/maskmerge/pairing"
	"github.com/brunobiangulo/maskmerge/preflight"
	"github.com/brunobiangulo/maskmerge/report"
	"github.com/brunobiangulo/maskmerge/runner"
	"github.com/brunobiangulo/maskmerge/signature"
	"github.com/brunobiangulo/maskmerge/store"
)

// Result summarises a finished run.
type Result struct {
	OutputDir    string      `json:"output_dir"`
	Pages        int         `json:"pages"`
	Extracted    int         `json:"extracted"`
	Records      int         `json:"records"`
	Objects      int         `json:"objects"`
	Modes        []string    `json:"modes"`
	MergedPairs  int         `json:"merged_pairs"`
	Standalone   int         `json:"standalone"`
	Ignored      int         `json:"ignored"`
	Composites   int         `json:"composites"`
	Samples      []string    `json:"samples,omitempty"`
	Duplicates   []Duplicate `json:"duplicates,omitempty"`
	ManifestPath string      `json:"manifest_path,omitempty"`
	ReportPath   string      `json:"report_path,omitempty"`

	Summary *pairing.Summary `json:"-"`
}

// Duplicate is a staged image whose signature nearly matches an earlier one.
type Duplicate struct {
	Path     string  `json:"path"`
	Of       string  `json:"of"`
	Distance float64 `json:"distance"`
}

// Pipeline runs the extraction, pairing and composition steps for one PDF
// at a time. Steps run strictly in sequence.
type Pipeline struct {
	cfg        Config
	log        *slog.Logger
	runner     runner.Runner
	compositor compose.Compositor
	policy     metadata.DuplicatePolicy
	now        func() time.Time
}

// New validates cfg and builds a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if len(cfg.BlendModes) == 0 {
		return nil, ErrNoBlendModes
	}
	if cfg.ExtractorPath == "" {
		return nil, fmt.Errorf("%w: extractor path is empty", ErrInvalidConfig)
	}
	if cfg.PairLabel == "" {
		cfg.PairLabel = pairing.DefaultLabel
	}
	if cfg.ImagePrefix == "" {
		cfg.ImagePrefix = "image"
	}

	policy, err := metadata.ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	r := cfg.Runner
	if r == nil {
		r = runner.ExecRunner{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	comp, err := compose.New(cfg.Compositor, r, cfg.ConvertPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &Pipeline{
		cfg:        cfg,
		log:        log,
		runner:     r,
		compositor: comp,
		policy:     policy,
		now:        time.Now,
	}, nil
}

// Run processes pdfPath into a fresh directory derived from outDir. An
// existing outDir is never reused; a timestamp suffix is added instead.
func (p *Pipeline) Run(ctx context.Context, pdfPath, outDir string) (*Result, error) {
	log := p.log
	start := time.Now()

	if _, err := preflight.Stat(pdfPath); err != nil {
		return nil, err
	}
	pages := 0
	if p.cfg.Preflight {
		info, err := preflight.Inspect(pdfPath)
		if err != nil {
			return nil, err
		}
		if info.Readable {
			pages = info.Pages
			log.Info("preflight: input opened", "file", filepath.Base(pdfPath), "pages", pages, "bytes", info.Size)
		} else {
			log.Warn("preflight: PDF reader could not open input, continuing with extractor", "file", pdfPath, "error", info.Err)
		}
	}

	if len(p.cfg.BlendModes) == 1 && p.cfg.BlendModes[0] == compose.DefaultMode {
		log.Info("Will only attempt CopyOpacity composition")
	} else {
		log.Info("Will attempt compositions", "modes", p.cfg.BlendModes)
	}

	lay, err := layout.Resolve(outDir, p.now())
	if err != nil {
		return nil, fmt.Errorf("preparing output directory: %w", err)
	}
	if lay.Root != outDir {
		log.Warn("The specified output directory exists. Using a unique directory instead", "dir", lay.Root)
	}

	res := &Result{OutputDir: lay.Root, Pages: pages, Modes: p.cfg.BlendModes}

	var m *manifest
	if p.cfg.Manifest {
		m, err = p.openManifest(ctx, lay.Root, pdfPath, pages)
		if err != nil {
			return res, err
		}
		defer m.close()
		res.ManifestPath = m.path
	}

	sum, groups, err := p.process(ctx, lay, pdfPath, res, m)
	if err != nil {
		if m != nil {
			m.fail(ctx)
		}
		return res, err
	}

	if m != nil {
		dups, err := m.recordOutputs(ctx, sum, p.cfg.DuplicateThreshold)
		if err != nil {
			m.fail(ctx)
			return res, err
		}
		res.Duplicates = dups
		for _, d := range dups {
			log.Info("manifest: probable duplicate image", "path", d.Path, "of", d.Of, "distance", d.Distance)
		}
		if err := m.finish(ctx, sum); err != nil {
			return res, err
		}
	}

	if p.cfg.Report {
		path := p.cfg.reportPath(lay.Root)
		if err := report.Write(path, lay.Root, groups, sum); err != nil {
			return res, fmt.Errorf("%w: %v", ErrReportFailed, err)
		}
		res.ReportPath = path
		log.Info("report: written", "path", path)
	}

	log.Info("Raw images sorted", "dir", lay.Organized)
	log.Info("masked images merged",
		"merged", res.MergedPairs, "ways", len(p.cfg.BlendModes), "dir", lay.Masked,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// process runs extraction, listing and pairing and fills res.
func (p *Pipeline) process(ctx context.Context, lay *layout.Layout, pdfPath string, res *Result, m *manifest) (*pairing.Summary, *metadata.Groups, error) {
	log := p.log

	ext := &extract.Extractor{
		Path:   p.cfg.ExtractorPath,
		Prefix: p.cfg.ImagePrefix,
		Runner: p.runner,
		Logger: log,
	}
	index, err := ext.Extract(ctx, pdfPath, lay.Extract)
	if err != nil {
		return nil, nil, err
	}
	res.Extracted = index.Len()

	lister := &metadata.Lister{
		Path:   p.cfg.ExtractorPath,
		Runner: p.runner,
		Policy: p.policy,
		Logger: log,
	}
	groups, err := lister.List(ctx, pdfPath)
	if err != nil {
		return nil, nil, err
	}
	res.Objects = groups.Len()
	res.Records = len(groups.Records())

	if m != nil {
		if err := m.recordGroups(ctx, groups); err != nil {
			return nil, nil, err
		}
	}

	log.Info("Merging masked images, copying standalone images", "compositor", p.compositor.Name())
	drv := &pairing.Driver{
		Layout:     lay,
		Compositor: p.compositor,
		Modes:      p.cfg.BlendModes,
		SampleID:   p.cfg.SampleID,
		Label:      p.cfg.PairLabel,
		Logger:     log,
	}
	sum, err := drv.Run(ctx, groups, index)
	if err != nil {
		return nil, nil, err
	}
	res.Summary = sum
	res.MergedPairs = sum.MergedPairs
	res.Standalone = sum.Standalone
	res.Ignored = sum.Ignored
	res.Composites = sum.Composites
	res.Samples = sum.Samples
	return sum, groups, nil
}

// manifest ties one run to its row in the manifest store.
type manifest struct {
	st    *store.Store
	runID int64
	path  string
	log   *slog.Logger
}

func (p *Pipeline) openManifest(ctx context.Context, root, pdfPath string, pages int) (*manifest, error) {
	path := p.cfg.resolveManifestPath(root)
	st, err := store.New(path, signature.Dim)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestFailed, err)
	}
	abs, err := filepath.Abs(pdfPath)
	if err != nil {
		abs = pdfPath
	}
	runID, err := st.BeginRun(ctx, store.Run{
		InputPath:  abs,
		OutputDir:  root,
		Pages:      pages,
		Modes:      p.cfg.BlendModes,
		Compositor: p.compositor.Name(),
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %v", ErrManifestFailed, err)
	}
	return &manifest{st: st, runID: runID, path: path, log: p.log}, nil
}

func (m *manifest) recordGroups(ctx context.Context, groups *metadata.Groups) error {
	var recs []store.Record
	for _, g := range groups.All() {
		class := g.Class().String()
		for _, r := range g.Records() {
			recs = append(recs, store.Record{
				ObjectID: r.ObjectID,
				Kind:     r.Kind,
				Sequence: r.SequenceNumber,
				Page:     optInt(r.Page),
				Width:    optInt(r.Width),
				Height:   optInt(r.Height),
				Color:    r.ColorSpace.Or(""),
				Encoding: r.Encoding.Or(""),
				Class:    class,
				Line:     r.Line,
			})
		}
	}
	if err := m.st.InsertRecords(ctx, m.runID, recs); err != nil {
		return fmt.Errorf("%w: %v", ErrManifestFailed, err)
	}
	return nil
}

// recordOutputs stores every output and the signatures of staged raw
// images. Raw images closer than threshold to an earlier one are returned.
func (m *manifest) recordOutputs(ctx context.Context, sum *pairing.Summary, threshold float64) ([]Duplicate, error) {
	var dups []Duplicate
	for _, o := range sum.Outputs {
		id, err := m.st.InsertOutput(ctx, store.Output{
			RunID:    m.runID,
			Kind:     string(o.Kind),
			ObjectID: o.ObjectID,
			Sequence: o.Sequence,
			Mode:     o.Mode,
			Source:   o.Source,
			Path:     o.Path,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrManifestFailed, err)
		}
		if o.Kind != pairing.OutputRawImage {
			continue
		}

		sig, err := signature.File(o.Path)
		if err != nil {
			// Not every extracted file is a PNG the decoder understands.
			m.log.Debug("manifest: no signature", "path", o.Path, "error", err)
			continue
		}
		if threshold > 0 {
			near, err := m.st.NearestImages(ctx, sig, 1)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrManifestFailed, err)
			}
			if len(near) > 0 && near[0].Distance < threshold {
				dups = append(dups, Duplicate{Path: o.Path, Of: near[0].Path, Distance: near[0].Distance})
			}
		}
		if err := m.st.InsertSignature(ctx, id, sig); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrManifestFailed, err)
		}
	}
	return dups, nil
}

func (m *manifest) finish(ctx context.Context, sum *pairing.Summary) error {
	if err := m.st.FinishRun(ctx, m.runID, "done", sum.MergedPairs, sum.Composites); err != nil {
		return fmt.Errorf("%w: %v", ErrManifestFailed, err)
	}
	return nil
}

// fail marks the run as failed. Errors are logged only; the caller is
// already returning the original failure.
func (m *manifest) fail(ctx context.Context) {
	if err := m.st.FinishRun(context.WithoutCancel(ctx), m.runID, "failed", 0, 0); err != nil {
		m.log.Warn("manifest: could not mark run failed", "error", err)
	}
}

func (m *manifest) close() {
	if err := m.st.Close(); err != nil {
		m.log.Warn("manifest: closing database", "error", err)
	}
}

func optInt(o metadata.Optional[int]) *int {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return &v
}
