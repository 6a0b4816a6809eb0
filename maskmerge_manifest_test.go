//go:build cgo

package maskmerge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/maskmerge/pairing"
	"github.com/brunobiangulo/maskmerge/signature"
	"github.com/brunobiangulo/maskmerge/store"
)

func TestRunWritesManifest(t *testing.T) {
	fx := &fakeExtractor{
		seqs:   []int{1, 2, 3, 4},
		shades: map[int]uint8{1: 100, 3: 100},
		list: listHeader +
			listRow(1, "image", 5) + listRow(2, "smask", 5) +
			listRow(3, "image", 9) + listRow(4, "smask", 9),
	}
	cfg := testConfig(fx)
	cfg.Manifest = true
	cfg.Report = false
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out := filepath.Join(t.TempDir(), "out")
	res, err := p.Run(context.Background(), writeInput(t), out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ManifestPath != filepath.Join(out, ManifestFile) {
		t.Errorf("ManifestPath = %q", res.ManifestPath)
	}
	if len(res.Duplicates) != 1 {
		t.Fatalf("duplicates = %+v, want 1", res.Duplicates)
	}
	if d := res.Duplicates[0]; filepath.Base(d.Path) != "3.png" || filepath.Base(d.Of) != "1.png" {
		t.Errorf("duplicate = %+v, want 3.png of 1.png", d)
	}

	st, err := store.New(res.ManifestPath, signature.Dim)
	if err != nil {
		t.Fatalf("reopening manifest: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	run, err := st.GetRun(ctx, 1)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != "done" || run.MergedPairs != 2 || run.Composites != 2 {
		t.Errorf("run = %+v, want done with 2 pairs and 2 composites", run)
	}

	stats, err := st.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	// 2 raw images, 2 raw masks, 2 composites, 1 sample.
	if stats.Records != 4 || stats.Outputs != 7 || stats.Signatures != 2 {
		t.Errorf("stats = %+v, want 4 records, 7 outputs, 2 signatures", stats)
	}

	raws, err := st.ListOutputs(ctx, 1, string(pairing.OutputRawImage))
	if err != nil {
		t.Fatalf("ListOutputs: %v", err)
	}
	if len(raws) != 2 {
		t.Errorf("raw image outputs = %d, want 2", len(raws))
	}
}
