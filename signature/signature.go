// Package signature reduces an image to a small luminance vector used to
// spot near-identical images across a run.
package signature

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"
)

// Side is the edge length of the thumbnail; vectors have Side*Side entries.
const Side = 8

// Dim is the length of a signature vector.
const Dim = Side * Side

// File computes the signature of the PNG at path.
func File(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a PNG from r and computes its signature.
func Read(r io.Reader) ([]float32, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return Compute(img), nil
}

// Compute scales img to Side×Side gray pixels and returns them in [0, 1],
// row by row.
func Compute(img image.Image) []float32 {
	thumb := image.NewGray(image.Rect(0, 0, Side, Side))
	draw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), img, img.Bounds(), draw.Src, nil)

	v := make([]float32, Dim)
	for i, p := range thumb.Pix[:Dim] {
		v[i] = float32(p) / 255
	}
	return v
}
