// Package report builds the final review report from a session snapshot and
// renders it as JSON, Markdown, HTML or an Excel workbook.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/session"
)

// Format is an output format of Render.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatXLSX     Format = "xlsx"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatMarkdown, FormatHTML, FormatXLSX}

// ParseFormat accepts a format name or its usual file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown report format %q (want one of json, markdown, html, xlsx)", s)
}

// ContentType returns the MIME type of the rendered format.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// Report is the final review summary of one session.
type Report struct {
	GeneratedAt   time.Time            `json:"generatedAt"`
	SessionID     string               `json:"sessionId,omitempty"`
	Model         string               `json:"model"`
	Summary       *model.Summary       `json:"summary,omitempty"`
	FilesAnalyzed int                  `json:"filesAnalyzed"`
	IssuesFound   int                  `json:"issuesFound"`
	FilesModified int                  `json:"filesModified"`
	Checklist     ChecklistSummary     `json:"checklist"`
	Progress      model.ReviewProgress `json:"progress"`
	Percent       int                  `json:"percent"`
	Files         []FileStatus         `json:"files"`
	Issues        []IssueRow           `json:"issues"`
}

// ChecklistSummary counts checklist items.
type ChecklistSummary struct {
	Total   int                   `json:"total"`
	Checked int                   `json:"checked"`
	Items   []model.ChecklistItem `json:"items"`
}

// FileStatus is the review status of one modified file.
type FileStatus struct {
	Name     string         `json:"name"`
	Decision model.Decision `json:"decision"`
	Changes  int            `json:"changes"`
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	Pending  int            `json:"pending"`
}

// IssueRow is one issue with the file it belongs to.
type IssueRow struct {
	File     string         `json:"file"`
	Line     int            `json:"line"`
	Severity model.Severity `json:"severity"`
	Type     string         `json:"type"`
	Message  string         `json:"message"`
}

// Build summarizes st. The per-file status comes from the acceptance ledger.
func Build(st session.State, now time.Time) Report {
	r := Report{
		GeneratedAt:   now.UTC(),
		SessionID:     st.SessionID,
		Model:         st.SelectedModel,
		FilesModified: len(st.ModifiedCode),
		Checklist: ChecklistSummary{
			Total:   len(st.Checklist),
			Checked: st.CheckedCount(),
			Items:   st.Checklist,
		},
		Progress: st.ReviewProgress,
		Percent:  st.ReviewProgress.Percent(),
		Files:    []FileStatus{},
		Issues:   []IssueRow{},
	}

	if res := st.AnalysisResults; res != nil {
		s := res.Summary
		r.Summary = &s
		r.FilesAnalyzed = s.TotalFiles
		r.IssuesFound = s.TotalIssues
		if res.ModelUsed != "" {
			r.Model = res.ModelUsed
		}
		for _, f := range res.Files() {
			for _, is := range f.Node.Issues {
				r.Issues = append(r.Issues, IssueRow{
					File:     f.Path,
					Line:     is.Line,
					Severity: is.Severity,
					Type:     is.Type,
					Message:  is.Message,
				})
			}
		}
		sort.SliceStable(r.Issues, func(i, j int) bool {
			return r.Issues[i].Severity > r.Issues[j].Severity
		})
	}

	for _, name := range st.FileNames() {
		rec := st.ModifiedCode[name]
		fs := FileStatus{
			Name:     name,
			Decision: st.FileDecision(name),
			Changes:  len(rec.Changes),
		}
		for _, c := range rec.Changes {
			switch st.Ledger.Line(name, c.Line) {
			case model.DecisionAccepted:
				fs.Accepted++
			case model.DecisionRejected:
				fs.Rejected++
			default:
				fs.Pending++
			}
		}
		r.Files = append(r.Files, fs)
	}

	return r
}

// Render writes r to w in the given format.
func Render(w io.Writer, r Report, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(r))
		return err
	case FormatHTML:
		return HTML(w, r)
	case FormatXLSX:
		return XLSX(w, r)
	}
	return fmt.Errorf("unknown report format %q", f)
}
