package signature

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255 * x / (w - 1))
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestComputeDimensions(t *testing.T) {
	v := Compute(gradient(64, 32))
	if len(v) != Dim {
		t.Fatalf("length: got %d, want %d", len(v), Dim)
	}
	for i, x := range v {
		if x < 0 || x > 1 {
			t.Fatalf("entry %d out of range: %v", i, x)
		}
	}
	// Left column darker than right column.
	if v[0] >= v[Side-1] {
		t.Errorf("expected left-to-right gradient, got %v .. %v", v[0], v[Side-1])
	}
}

func TestComputeScaleInvariant(t *testing.T) {
	a := Compute(gradient(64, 64))
	b := Compute(gradient(256, 256))
	var dist float32
	for i := range a {
		d := a[i] - b[i]
		dist += d * d
	}
	if dist > 0.05 {
		t.Errorf("signatures of the same picture at two sizes differ too much: %v", dist)
	}
}

func TestRead(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(16, 16)); err != nil {
		t.Fatal(err)
	}
	v, err := Read(&buf)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if len(v) != Dim {
		t.Errorf("length: got %d", len(v))
	}
}

func TestReadInvalid(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("nope"))); err == nil {
		t.Fatal("expected decode error")
	}
}
