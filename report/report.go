// Package report writes an XLSX inventory of a run: every admitted image
// record with its pairing class, and every file the run wrote.
package report

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/maskmerge/metadata"
	"github.com/brunobiangulo/maskmerge/pairing"
)

// Sheet names.
const (
	SheetImages  = "Images"
	SheetOutputs = "Outputs"
)

// FileName is the default report name inside the output directory.
const FileName = "images.xlsx"

var imageHeader = []any{
	"Object", "Kind", "Sequence", "Class", "Page", "Width", "Height",
	"Color", "Comp", "BPC", "Encoding", "Interp", "Gen", "X-PPI", "Y-PPI", "Size", "Ratio",
}

var outputHeader = []any{"Kind", "Object", "Sequence", "Mode", "Path", "Source"}

// Write saves the workbook to path. Output paths are written relative to
// root when possible.
func Write(path, root string, groups *metadata.Groups, sum *pairing.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetImages); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetOutputs); err != nil {
		return fmt.Errorf("adding sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating style: %w", err)
	}

	rows := [][]any{imageHeader}
	for _, g := range groups.All() {
		class := g.Class().String()
		for _, r := range g.Records() {
			rows = append(rows, imageRow(r, class))
		}
	}
	if err := writeRows(f, SheetImages, rows, bold); err != nil {
		return err
	}

	rows = [][]any{outputHeader}
	if sum != nil {
		for _, o := range sum.Outputs {
			rows = append(rows, []any{string(o.Kind), o.ObjectID, o.Sequence, o.Mode, rel(root, o.Path), rel(root, o.Source)})
		}
	}
	if err := writeRows(f, SheetOutputs, rows, bold); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

func imageRow(r metadata.ImageRecord, class string) []any {
	return []any{
		r.ObjectID, r.Kind, r.SequenceNumber, class,
		cell(r.Page), cell(r.Width), cell(r.Height),
		cell(r.ColorSpace), cell(r.Components), cell(r.BitsPerComponent),
		cell(r.Encoding), cell(r.Interpolate), cell(r.Generation),
		cell(r.XPPI), cell(r.YPPI), cell(r.Size), cell(r.Ratio),
	}
}

// cell leaves absent values blank.
func cell[T any](o metadata.Optional[T]) any {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return v
}

func rel(root, p string) string {
	if p == "" || root == "" {
		return p
	}
	r, err := filepath.Rel(root, p)
	if err != nil || filepath.IsAbs(r) || (len(r) >= 2 && r[:2] == "..") {
		return p
	}
	return filepath.ToSlash(r)
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, ref, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	return nil
}
