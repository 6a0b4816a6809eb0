package compose

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sort"
	"strings"

	"golang.org/x/image/draw"
)

// blendFunc combines one colour channel c of the image with mask value m.
type blendFunc func(c, m uint8) uint8

var nativeModes = map[string]blendFunc{
	"copyopacity": nil, // mask becomes alpha, colour untouched
	"multiply":    func(c, m uint8) uint8 { return uint8(uint16(c) * uint16(m) / 255) },
	"screen":      func(c, m uint8) uint8 { return 255 - uint8(uint16(255-c)*uint16(255-m)/255) },
	"darken":      func(c, m uint8) uint8 { return min(c, m) },
	"lighten":     func(c, m uint8) uint8 { return max(c, m) },
}

// NativeModes lists the blend modes NativeCompositor implements.
func NativeModes() []string {
	names := make([]string, 0, len(nativeModes))
	for k := range nativeModes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// NativeCompositor composites PNG files in-process. Mode names are matched
// case-insensitively. A mask whose size differs from the image is scaled
// to the image bounds first.
type NativeCompositor struct{}

// Name implements Compositor.
func (NativeCompositor) Name() string { return BackendNative }

// Compose implements Compositor.
func (NativeCompositor) Compose(ctx context.Context, req Request) error {
	fn, ok := nativeModes[strings.ToLower(req.Mode)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMode, req.Mode)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := decodePNG(req.Image)
	if err != nil {
		return err
	}
	mask, err := decodePNG(req.Mask)
	if err != nil {
		return err
	}

	out := blend(img, toGray(mask, img.Bounds()), fn)

	f, err := os.Create(req.Out)
	if err != nil {
		return fmt.Errorf("creating composite: %w", err)
	}
	if err := png.Encode(f, out); err != nil {
		f.Close()
		return fmt.Errorf("encoding composite: %w", err)
	}
	return f.Close()
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

// toGray converts mask to 8-bit luminance covering bounds, resampling with
// bilinear interpolation when the sizes differ.
func toGray(mask image.Image, bounds image.Rectangle) *image.Gray {
	g := image.NewGray(bounds)
	mb := mask.Bounds()
	if mb.Dx() == bounds.Dx() && mb.Dy() == bounds.Dy() {
		draw.Draw(g, bounds, mask, mb.Min, draw.Src)
		return g
	}
	draw.BiLinear.Scale(g, bounds, mask, mb, draw.Src, nil)
	return g
}

// blend applies fn per colour channel, or copies the mask into the alpha
// channel when fn is nil. The image's own alpha is kept for channel modes.
func blend(img image.Image, mask *image.Gray, fn blendFunc) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			m := mask.GrayAt(x, y).Y
			if fn == nil {
				c.A = m
			} else {
				c.R, c.G, c.B = fn(c.R, m), fn(c.G, m), fn(c.B, m)
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}
