// Package pairing walks the grouped image records, stages raw copies of
// images and masks, and composites every image/soft-mask pair under each
// configured blend mode.
package pairing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brunobiangulo/maskmerge/compose"
	"github.com/brunobiangulo/maskmerge/extract"
	"github.com/brunobiangulo/maskmerge/layout"
	"github.com/brunobiangulo/maskmerge/metadata"
)

// DefaultLabel names the composite folder of image/smask pairs.
const DefaultLabel = "image+mask"

var (
	// ErrDanglingReference is returned when a record names a sequence
	// number the extractor produced no file for.
	ErrDanglingReference = errors.New("dangling image reference")

	// ErrNoModes is returned when the driver has no blend mode to apply.
	ErrNoModes = errors.New("pairing: no blend modes configured")
)

// OutputKind tells what a written file is.
type OutputKind string

const (
	OutputRawImage  OutputKind = "raw-image"
	OutputRawMask   OutputKind = "raw-mask"
	OutputComposite OutputKind = "composite"
	OutputSample    OutputKind = "sample"
)

// Output is one file written by the driver.
type Output struct {
	Kind     OutputKind `json:"kind"`
	ObjectID int        `json:"object_id"`
	Sequence int        `json:"sequence"`
	Mode     string     `json:"mode,omitempty"`
	Source   string     `json:"source,omitempty"`
	Path     string     `json:"path"`
}

// Summary reports what a run did.
type Summary struct {
	// MergedPairs counts each masked pair once, however many modes ran.
	MergedPairs int      `json:"merged_pairs"`
	Standalone  int      `json:"standalone"`
	Ignored     int      `json:"ignored"`
	Composites  int      `json:"composites"`
	Samples     []string `json:"samples,omitempty"`
	Outputs     []Output `json:"outputs"`
}

// Count returns how many outputs of kind k were written.
func (s *Summary) Count(k OutputKind) int {
	n := 0
	for _, o := range s.Outputs {
		if o.Kind == k {
			n++
		}
	}
	return n
}

// Driver runs the pairing and composition step.
type Driver struct {
	Layout     *layout.Layout
	Compositor compose.Compositor
	Modes      []string // applied in order to every masked pair
	SampleID   int      // destination id whose composites are copied to the samples folder
	Label      string   // pairing label, DefaultLabel when empty
	Logger     *slog.Logger
}

// Run processes every group in first-seen order. Mask-only groups and
// groups without an exact "image" record are skipped. Any missing
// extracted file or compositor failure stops the run.
func (d *Driver) Run(ctx context.Context, groups *metadata.Groups, index *extract.Index) (*Summary, error) {
	if len(d.Modes) == 0 {
		return nil, ErrNoModes
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	label := d.Label
	if label == "" {
		label = DefaultLabel
	}

	sum := &Summary{}
	for _, g := range groups.All() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		switch g.Class() {
		case metadata.ClassMaskedPair:
			img, _ := g.Image()
			mask, _ := g.Mask()
			imgPath, err := resolve(index, g.ObjectID, img)
			if err != nil {
				return sum, err
			}
			maskPath, err := resolve(index, g.ObjectID, mask)
			if err != nil {
				return sum, err
			}

			if err := d.stage(sum, OutputRawImage, g.ObjectID, img.SequenceNumber, imgPath, d.Layout.RawImagePath(img.SequenceNumber)); err != nil {
				return sum, err
			}
			if err := d.stage(sum, OutputRawMask, g.ObjectID, mask.SequenceNumber, maskPath, d.Layout.RawMaskPath(mask.SequenceNumber)); err != nil {
				return sum, err
			}

			for i, mode := range d.Modes {
				if err := d.composite(ctx, sum, label, mode, g.ObjectID, img.SequenceNumber, imgPath, maskPath); err != nil {
					return sum, err
				}
				if i == 0 {
					sum.MergedPairs++
				}
			}

		case metadata.ClassStandalone:
			img, _ := g.Image()
			imgPath, err := resolve(index, g.ObjectID, img)
			if err != nil {
				return sum, err
			}
			if err := d.stage(sum, OutputRawImage, g.ObjectID, img.SequenceNumber, imgPath, d.Layout.RawImagePath(img.SequenceNumber)); err != nil {
				return sum, err
			}
			sum.Standalone++

		default:
			log.Debug("pairing: skipping object", "object", g.ObjectID, "class", g.Class().String(), "kinds", g.Kinds())
			sum.Ignored++
		}
	}

	log.Info("pairing: complete",
		"merged", sum.MergedPairs, "modes", len(d.Modes),
		"standalone", sum.Standalone, "ignored", sum.Ignored,
		"composites", sum.Composites)
	return sum, nil
}

func resolve(index *extract.Index, objectID int, rec metadata.ImageRecord) (string, error) {
	p, ok := index.Lookup(rec.SequenceNumber)
	if !ok {
		return "", fmt.Errorf("%w: object %d kind %s sequence %d has no extracted file",
			ErrDanglingReference, objectID, rec.Kind, rec.SequenceNumber)
	}
	return p, nil
}

func (d *Driver) stage(sum *Summary, kind OutputKind, objectID, seq int, src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return err
	}
	sum.Outputs = append(sum.Outputs, Output{Kind: kind, ObjectID: objectID, Sequence: seq, Source: src, Path: dst})
	return nil
}

func (d *Driver) composite(ctx context.Context, sum *Summary, label, mode string, objectID, id int, imgPath, maskPath string) error {
	dir, err := d.Layout.CompositeDir(label, mode)
	if err != nil {
		return err
	}
	out := filepath.Join(dir, layout.CompositeName(id))
	if err := d.Compositor.Compose(ctx, compose.Request{Image: imgPath, Mask: maskPath, Mode: mode, Out: out}); err != nil {
		return fmt.Errorf("composing object %d with %s: %w", objectID, mode, err)
	}
	sum.Composites++
	sum.Outputs = append(sum.Outputs, Output{Kind: OutputComposite, ObjectID: objectID, Sequence: id, Mode: mode, Path: out})

	if id != d.SampleID {
		return nil
	}
	sample := d.Layout.SamplePath(label, mode, id)
	if err := copyFile(out, sample); err != nil {
		return err
	}
	sum.Samples = append(sum.Samples, sample)
	sum.Outputs = append(sum.Outputs, Output{Kind: OutputSample, ObjectID: objectID, Sequence: id, Mode: mode, Source: out, Path: sample})
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}
