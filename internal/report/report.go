// Package report summarizes the tracker state of a blob folder, either as rows
// for terminal output or as an xlsx workbook.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"scribe/internal/blobstore"
	"scribe/internal/metasync"
	"scribe/internal/tracker"
)

// Sheet names in the exported workbook.
const (
	StatusSheet  = "Status"
	SummarySheet = "Summary"
)

// Row is the tracker state of one blob.
type Row struct {
	Ref            string
	Name           string
	Tracked        bool
	Status         tracker.Status
	Comment        string
	Quality        string
	Compute        string
	TranscriptName string
	TranscriptRef  string
}

// Collect reads the record of every blob in folder. Blobs without a usable
// record are reported as untracked rather than failing the whole listing.
func Collect(ctx context.Context, blobs blobstore.Store, syncer *metasync.Syncer, folder string) ([]Row, error) {
	refs, err := blobs.List(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	rows := make([]Row, 0, len(refs))
	for _, ref := range refs {
		name, err := blobs.Name(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", ref, err)
		}
		row := Row{Ref: ref, Name: name}
		record, ok, err := syncer.Inspect(ctx, ref)
		if err != nil {
			return nil, err
		}
		if ok {
			row.Tracked = true
			row.Status = record.Status
			row.Comment = record.Comment
			row.Quality = record.QualitySetting
			row.Compute = record.ComputeSetting
			row.TranscriptName = record.TranscriptName
			row.TranscriptRef = record.TranscriptRef
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b Row) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return rows, nil
}

// StatusLabel is the display form of a row's status.
func (r Row) StatusLabel() string {
	if !r.Tracked {
		return "Untracked"
	}
	return r.Status.DisplayName()
}

// Counts tallies rows per status. Untracked rows count under "".
func Counts(rows []Row) map[tracker.Status]int {
	counts := make(map[tracker.Status]int)
	for _, row := range rows {
		if row.Tracked {
			counts[row.Status]++
		} else {
			counts[""]++
		}
	}
	return counts
}

var statusHeader = []any{"File", "Ref", "Status", "Comment", "Quality", "Compute", "Transcript", "Transcript Ref"}

// WriteXLSX writes rows to a workbook at path, with a per-status summary on
// a second sheet.
func WriteXLSX(rows []Row, folder, path string) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", StatusSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeRow(f, StatusSheet, 1, statusHeader); err != nil {
		return err
	}
	for i, row := range rows {
		values := []any{
			row.Name, row.Ref, row.StatusLabel(), row.Comment,
			row.Quality, row.Compute, row.TranscriptName, row.TranscriptRef,
		}
		if err := writeRow(f, StatusSheet, i+2, values); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(statusHeader))
	if err := f.SetCellStyle(StatusSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(StatusSheet, "A", "A", 36); err != nil {
		return fmt.Errorf("set width: %w", err)
	}
	if err := f.SetColWidth(StatusSheet, "D", "D", 60); err != nil {
		return fmt.Errorf("set width: %w", err)
	}
	if err := f.SetPanes(StatusSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	if len(rows) > 0 {
		if err := f.AutoFilter(StatusSheet, fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1), nil); err != nil {
			return fmt.Errorf("auto filter: %w", err)
		}
	}

	if err := writeSummary(f, rows, folder, bold); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure report directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, rows []Row, folder string, bold int) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	lines := [][]any{
		{"Folder", folder},
		{"Generated", time.Now().UTC().Format(time.RFC3339)},
		{"Files", len(rows)},
		{},
		{"Status", "Count"},
	}
	counts := Counts(rows)
	for _, status := range tracker.AllStatuses() {
		lines = append(lines, []any{status.DisplayName(), counts[status]})
	}
	lines = append(lines, []any{"Untracked", counts[""]})

	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		if err := writeRow(f, SummarySheet, i+1, line); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "A3", bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	if err := f.SetCellStyle(SummarySheet, "A5", "B5", bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	return f.SetColWidth(SummarySheet, "A", "A", 32)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
