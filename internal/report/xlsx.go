package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSX writes the report as a workbook with one sheet per section.
func XLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	summary := [][]any{
		{"Metric", "Value"},
		{"Generated", r.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Session", r.SessionID},
		{"Model", r.Model},
		{"Files analyzed", r.FilesAnalyzed},
		{"Issues found", r.IssuesFound},
		{"Files modified", r.FilesModified},
		{"Checklist checked", r.Checklist.Checked},
		{"Checklist total", r.Checklist.Total},
		{"Total changes", r.Progress.TotalChanges},
		{"Accepted", r.Progress.AcceptedChanges},
		{"Rejected", r.Progress.RejectedChanges},
		{"Pending", r.Progress.PendingChanges},
		{"Percent reviewed", r.Percent},
	}
	if s := r.Summary; s != nil {
		summary = append(summary, []any{"Overall score", s.OverallScore})
	}

	files := [][]any{{"File", "Decision", "Changes", "Accepted", "Rejected", "Pending"}}
	for _, fs := range r.Files {
		files = append(files, []any{fs.Name, fs.Decision.String(), fs.Changes, fs.Accepted, fs.Rejected, fs.Pending})
	}

	issues := [][]any{{"File", "Line", "Severity", "Type", "Message"}}
	for _, is := range r.Issues {
		issues = append(issues, []any{is.File, is.Line, is.Severity.String(), is.Type, is.Message})
	}

	checklist := [][]any{{"ID", "Category", "Title", "Severity", "Checked"}}
	for _, it := range r.Checklist.Items {
		checklist = append(checklist, []any{it.ID, it.Category, it.Title, it.Severity.String(), it.Checked})
	}

	// A new workbook starts with "Sheet1"; rename it instead of leaving it empty.
	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	sheets := []struct {
		name string
		rows [][]any
	}{
		{"Summary", summary},
		{"Files", files},
		{"Issues", issues},
		{"Checklist", checklist},
	}
	for _, sh := range sheets {
		if sh.name != "Summary" {
			if _, err := f.NewSheet(sh.name); err != nil {
				return fmt.Errorf("creating sheet %s: %w", sh.name, err)
			}
		}
		if err := writeRows(f, sh.name, sh.rows); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
