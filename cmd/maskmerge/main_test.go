package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantModes []string
		wantID    int
		wantQuiet bool
		wantErr   string
	}{
		{name: "no args", args: nil, wantErr: msgNeedInput},
		{name: "input only", args: []string{"Sample.pdf"}, wantErr: msgNeedOutput},
		{name: "defaults", args: []string{"Sample.pdf", "out"}, wantID: 1},
		{name: "all modes", args: []string{"Sample.pdf", "out", "all"}, wantModes: []string{"CopyOpacity"}, wantID: 1},
		{name: "mode list", args: []string{"Sample.pdf", "out", "CopyOpacity,Multiply", "7"}, wantModes: []string{"CopyOpacity", "Multiply"}, wantID: 7},
		{name: "bad sample", args: []string{"Sample.pdf", "out", "all", "x"}, wantErr: "sample image number"},
		{name: "fifth arg is quiet", args: []string{"Sample.pdf", "out", "all", "1", "q"}, wantModes: []string{"CopyOpacity"}, wantID: 1, wantQuiet: true},
		{name: "quiet flag", args: []string{"-quiet", "Sample.pdf", "out"}, wantID: 1, wantQuiet: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseArgs(tt.args, io.Discard)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parseArgs() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArgs() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantModes, o.modes); diff != "" {
				t.Errorf("modes mismatch (-want +got):\n%s", diff)
			}
			if o.sampleID != tt.wantID {
				t.Errorf("sampleID = %d, want %d", o.sampleID, tt.wantID)
			}
			if o.quiet != tt.wantQuiet {
				t.Errorf("quiet = %v, want %v", o.quiet, tt.wantQuiet)
			}
		})
	}
}

func TestBuildConfigLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"extractor_path": "/opt/poppler/pdfimages", "convert_path": "/opt/im/convert", "pair_label": "pairs"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{"MASKMERGE_CONVERT": "/usr/local/bin/convert", "MASKMERGE_COMPOSITOR": "native"}

	o, err := parseArgs([]string{"-config", path, "-extractor", "/bin/pdfimages", "-no-report", "in.pdf", "out"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := buildConfig(o, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}

	if cfg.ExtractorPath != "/bin/pdfimages" {
		t.Errorf("ExtractorPath = %q, flag should win", cfg.ExtractorPath)
	}
	if cfg.ConvertPath != "/usr/local/bin/convert" {
		t.Errorf("ConvertPath = %q, env should beat the file", cfg.ConvertPath)
	}
	if cfg.Compositor != "native" {
		t.Errorf("Compositor = %q", cfg.Compositor)
	}
	if cfg.PairLabel != "pairs" {
		t.Errorf("PairLabel = %q, want value from file", cfg.PairLabel)
	}
	if cfg.Report {
		t.Error("Report should be disabled by -no-report")
	}
	if !cfg.Manifest {
		t.Error("Manifest should stay enabled")
	}
}

func TestRunUsage(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), nil, &out, io.Discard, func(string) string { return "" })
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if got := strings.TrimSpace(out.String()); got != msgNeedInput {
		t.Errorf("output = %q, want %q", got, msgNeedInput)
	}
}

func TestRunReportsToolFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false(1) not available")
	}
	dir := t.TempDir()
	pdf := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	args := []string{"-extractor", "false", "-no-manifest", "-no-report", pdf, filepath.Join(dir, "out"), "all", "1", "quiet"}
	code := run(context.Background(), args, &out, io.Discard, func(string) string { return "" })
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.HasPrefix(out.String(), "An error occurred while running false -png ") {
		t.Errorf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), "\nstderr: ") {
		t.Errorf("stderr line missing: %q", out.String())
	}
}
