// Command maskmerge extracts the images of a PDF, merges every image with
// its soft mask and sorts the results into an output directory.
//
//	maskmerge [flags] <input-pdf> <output-dir> [blend-modes|all] [sample-seq]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/term"

	"github.com/brunobiangulo/maskmerge"
	"github.com/brunobiangulo/maskmerge/compose"
	"github.com/brunobiangulo/maskmerge/runner"
)

const (
	msgNeedInput  = "An input PDF file is required, like Sample.pdf"
	msgNeedOutput = "An output directory is required, example ~/Desktop/extracted"
)

// quietArgs is the positional argument count from which output is silenced.
const quietArgs = 5

type options struct {
	configPath      string
	quiet           bool
	compositor      string
	extractor       string
	convert         string
	noManifest      bool
	noReport        bool
	duplicatePolicy string

	input    string
	output   string
	modes    []string
	sampleID int
}

// errUsage carries a message that is printed as is.
type errUsage struct{ msg string }

func (e *errUsage) Error() string { return e.msg }

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("maskmerge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{sampleID: 1}
	fs.StringVar(&o.configPath, "config", "", "Path to config file (JSON)")
	fs.BoolVar(&o.quiet, "quiet", false, "Suppress progress output")
	fs.StringVar(&o.compositor, "compositor", "", "Compositor backend: magick or native")
	fs.StringVar(&o.extractor, "extractor", "", "Path to pdfimages")
	fs.StringVar(&o.convert, "convert", "", "Path to ImageMagick convert")
	fs.BoolVar(&o.noManifest, "no-manifest", false, "Do not write manifest.db")
	fs.BoolVar(&o.noReport, "no-report", false, "Do not write images.xlsx")
	fs.StringVar(&o.duplicatePolicy, "duplicate-policy", "", "Repeated kind on one object: overwrite, keep-first or reject")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	pos := fs.Args()
	if len(pos) < 1 {
		return nil, &errUsage{msgNeedInput}
	}
	if len(pos) < 2 {
		return nil, &errUsage{msgNeedOutput}
	}
	o.input, o.output = pos[0], pos[1]
	if len(pos) > 2 {
		o.modes = compose.ParseModes(pos[2])
	}
	if len(pos) > 3 {
		n, err := strconv.Atoi(pos[3])
		if err != nil || n < 0 {
			return nil, &errUsage{fmt.Sprintf("The sample image number must be a non-negative integer, got %q", pos[3])}
		}
		o.sampleID = n
	}
	if len(pos) >= quietArgs {
		o.quiet = true
	}
	return o, nil
}

// buildConfig layers the config file, the environment and the flags, in
// that order, over the defaults.
func buildConfig(o *options, getenv func(string) string) (maskmerge.Config, error) {
	cfg := maskmerge.DefaultConfig()
	if o.configPath != "" {
		f, err := os.Open(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("opening config: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	if v := getenv("MASKMERGE_EXTRACTOR"); v != "" {
		cfg.ExtractorPath = v
	}
	if v := getenv("MASKMERGE_CONVERT"); v != "" {
		cfg.ConvertPath = v
	}
	if v := getenv("MASKMERGE_COMPOSITOR"); v != "" {
		cfg.Compositor = v
	}

	if o.extractor != "" {
		cfg.ExtractorPath = o.extractor
	}
	if o.convert != "" {
		cfg.ConvertPath = o.convert
	}
	if o.compositor != "" {
		cfg.Compositor = o.compositor
	}
	if o.duplicatePolicy != "" {
		cfg.DuplicatePolicy = o.duplicatePolicy
	}
	if o.noManifest {
		cfg.Manifest = false
	}
	if o.noReport {
		cfg.Report = false
	}
	if o.modes != nil {
		cfg.BlendModes = o.modes
	}
	cfg.SampleID = o.sampleID
	return cfg, nil
}

func newLogger(w io.Writer, quiet bool) *slog.Logger {
	if quiet {
		return slog.New(slog.DiscardHandler)
	}
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// reportError prints err for a user. Failed tool invocations show the
// command line and everything it printed.
func reportError(w io.Writer, err error) {
	var perr *runner.ProcessError
	if errors.As(err, &perr) {
		fmt.Fprintf(w, "An error occurred while running %s\n", perr.Command)
		fmt.Fprintf(w, "stdout: %s\n", perr.Stdout)
		fmt.Fprintf(w, "stderr: %s\n", perr.Stderr)
		return
	}
	fmt.Fprintln(w, err)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	o, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		var u *errUsage
		if errors.As(err, &u) {
			fmt.Fprintln(stdout, u.msg)
		}
		return 1
	}

	cfg, err := buildConfig(o, getenv)
	if err != nil {
		reportError(stdout, err)
		return 1
	}
	cfg.Logger = newLogger(stdout, o.quiet)
	slog.SetDefault(cfg.Logger)

	p, err := maskmerge.New(cfg)
	if err != nil {
		reportError(stdout, err)
		return 1
	}
	if _, err := p.Run(ctx, o.input, o.output); err != nil {
		reportError(stdout, err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}
