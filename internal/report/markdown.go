package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Markdown renders the report as a Markdown document.
func Markdown(r Report) string {
	var b strings.Builder

	b.WriteString("# Code Review Report\n\n")
	b.WriteString(fmt.Sprintf("Generated %s", r.GeneratedAt.Format("2006-01-02 15:04 UTC")))
	if r.SessionID != "" {
		b.WriteString(fmt.Sprintf(" for session `%s`", r.SessionID))
	}
	b.WriteString(fmt.Sprintf(" using %s.\n\n", r.Model))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	b.WriteString(fmt.Sprintf("| Files analyzed | %d |\n", r.FilesAnalyzed))
	b.WriteString(fmt.Sprintf("| Issues found | %d |\n", r.IssuesFound))
	if s := r.Summary; s != nil {
		b.WriteString(fmt.Sprintf("| Critical / high / medium / low | %d / %d / %d / %d |\n",
			s.CriticalIssues, s.HighIssues, s.MediumIssues, s.LowIssues))
		b.WriteString(fmt.Sprintf("| Overall score | %d |\n", s.OverallScore))
	}
	b.WriteString(fmt.Sprintf("| Files modified | %d |\n", r.FilesModified))
	b.WriteString(fmt.Sprintf("| Checklist | %d of %d checked |\n", r.Checklist.Checked, r.Checklist.Total))
	b.WriteString("\n")

	b.WriteString("## Review Progress\n\n")
	p := r.Progress
	b.WriteString(fmt.Sprintf("%d%% reviewed: %d accepted, %d rejected, %d pending of %d changes.\n\n",
		r.Percent, p.AcceptedChanges, p.RejectedChanges, p.PendingChanges, p.TotalChanges))

	if len(r.Files) > 0 {
		b.WriteString("### Files\n\n")
		b.WriteString("| File | Decision | Accepted | Rejected | Pending |\n|---|---|---|---|---|\n")
		for _, f := range r.Files {
			b.WriteString(fmt.Sprintf("| `%s` | %s | %d | %d | %d |\n",
				f.Name, f.Decision, f.Accepted, f.Rejected, f.Pending))
		}
		b.WriteString("\n")
	}

	if len(r.Issues) > 0 {
		b.WriteString("## Issues\n\n")
		for _, is := range r.Issues {
			b.WriteString(fmt.Sprintf("- **%s** `%s:%d` %s\n", is.Severity, is.File, is.Line, escapeInline(is.Message)))
		}
		b.WriteString("\n")
	}

	if len(r.Checklist.Items) > 0 {
		b.WriteString("## Checklist\n\n")
		for _, it := range r.Checklist.Items {
			mark := " "
			if it.Checked {
				mark = "x"
			}
			b.WriteString(fmt.Sprintf("- [%s] %s (%s)\n", mark, escapeInline(it.Title), it.Severity))
		}
		b.WriteString("\n")
	}

	return b.String()
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM, // tables and task lists
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// HTML renders the Markdown report to a standalone HTML page.
func HTML(w io.Writer, r Report) error {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(r)), &body); err != nil {
		return fmt.Errorf("converting report to html: %w", err)
	}
	_, err := fmt.Fprintf(w, htmlPage, body.String())
	return err
}

const htmlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Code Review Report</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 960px; margin: 2rem auto; color: #24292f; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 4px 10px; }
code { background: #f6f8fa; padding: 1px 4px; }
</style>
</head>
<body>
%s</body>
</html>
`

// escapeInline keeps table pipes and line breaks in free text from breaking
// the Markdown layout.
func escapeInline(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
