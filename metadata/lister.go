package metadata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brunobiangulo/maskmerge/runner"
)

// Lister runs the external metadata lister and parses its report.
type Lister struct {
	Path   string // lister binary, e.g. "pdfimages"
	Runner runner.Runner
	Policy DuplicatePolicy
	Logger *slog.Logger
}

// List runs "<Path> -list <pdfPath>" and groups the report by object id.
// A nonzero exit status is returned as a *runner.ProcessError.
func (l *Lister) List(ctx context.Context, pdfPath string) (*Groups, error) {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}

	cmd := runner.Command{Name: l.Path, Args: []string{"-list", pdfPath}}
	log.Debug("metadata: running lister", "command", cmd.String())
	res, err := runner.Check(ctx, l.Runner, cmd)
	if err != nil {
		return nil, err
	}

	groups, err := ParseReport(string(res.Stdout), WithDuplicatePolicy(l.Policy))
	if err != nil {
		return nil, fmt.Errorf("parsing image list: %w", err)
	}
	log.Info("metadata: parsed image list",
		"objects", groups.Len(),
		"masked", groups.Count(ClassMaskedPair),
		"standalone", groups.Count(ClassStandalone),
		"mask_only", groups.Count(ClassMaskOnly))
	return groups, nil
}
