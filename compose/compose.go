// Package compose merges an image with its soft mask under a named blend
// mode, either through ImageMagick or natively.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brunobiangulo/maskmerge/runner"
)

// ErrUnknownMode is returned by compositors that do not implement the
// requested blend mode.
var ErrUnknownMode = errors.New("compose: unknown blend mode")

// DefaultMode is used when no blend mode is configured.
const DefaultMode = "CopyOpacity"

// Request asks for one composite.
type Request struct {
	Image string // base image path
	Mask  string // soft mask path
	Mode  string // blend mode name, e.g. "CopyOpacity"
	Out   string // output PNG path
}

// Compositor produces one output raster from an image and its mask.
type Compositor interface {
	Compose(ctx context.Context, req Request) error
	Name() string
}

// Compositor backends selectable by name.
const (
	BackendMagick = "magick"
	BackendNative = "native"
)

// New returns the compositor backend called name. The magick backend runs
// convertPath through r.
func New(name string, r runner.Runner, convertPath string) (Compositor, error) {
	switch strings.ToLower(name) {
	case "", BackendMagick, "imagemagick", "convert":
		if convertPath == "" {
			convertPath = "convert"
		}
		return &MagickCompositor{Path: convertPath, Runner: r}, nil
	case BackendNative, "go":
		return NativeCompositor{}, nil
	}
	return nil, fmt.Errorf("no compositor backend: %s", name)
}

// ParseModes splits a comma-separated list of blend modes. Empty input and
// the literal "all" select DefaultMode.
func ParseModes(csv string) []string {
	csv = strings.TrimSpace(csv)
	if csv == "" || csv == "all" {
		return []string{DefaultMode}
	}
	var modes []string
	for _, m := range strings.Split(csv, ",") {
		if m = strings.TrimSpace(m); m != "" {
			modes = append(modes, m)
		}
	}
	if len(modes) == 0 {
		return []string{DefaultMode}
	}
	return modes
}

// MagickCompositor shells out to ImageMagick:
//
//	convert <image> <mask> -compose <mode> -composite <out>
type MagickCompositor struct {
	Path   string
	Runner runner.Runner
}

// Name implements Compositor.
func (c *MagickCompositor) Name() string { return BackendMagick }

// Compose implements Compositor. A nonzero exit, including ImageMagick
// rejecting the mode name, is returned as a *runner.ProcessError.
func (c *MagickCompositor) Compose(ctx context.Context, req Request) error {
	cmd := runner.Command{
		Name: c.Path,
		Args: []string{req.Image, req.Mask, "-compose", req.Mode, "-composite", req.Out},
	}
	_, err := runner.Check(ctx, c.Runner, cmd)
	return err
}
