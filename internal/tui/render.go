package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/crdash/internal/analysis"
	"github.com/sprite-ai/crdash/internal/diff"
	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/session"
)

// changeRow is one suggested change ready for display.
type changeRow struct {
	Change   model.Change
	Decision model.Decision

	// Syntax highlighting of the displayed text (nil = plain)
	Tokens diff.Line

	// Review finding on this line, if any
	Finding *analysis.Finding
}

// displayText is the text shown for a change: the new line, or the removed
// line for deletions.
func displayText(c model.Change) string {
	switch {
	case c.Type == model.ChangeDeletion && c.OldContent != "":
		return c.OldContent
	case c.NewContent != "":
		return c.NewContent
	default:
		return c.Content
	}
}

type findingKey struct {
	file string
	line int
}

// indexFindings keeps the most severe finding per line.
func indexFindings(fs []analysis.Finding) map[findingKey]analysis.Finding {
	out := make(map[findingKey]analysis.Finding, len(fs))
	for _, f := range fs {
		k := findingKey{f.File, f.Line}
		if cur, ok := out[k]; !ok || f.Severity > cur.Severity {
			out[k] = f
		}
	}
	return out
}

// buildRows produces the rows of one file in the current snapshot.
func buildRows(hl *diff.Highlighter, st session.State, file string, findings map[findingKey]analysis.Finding) []changeRow {
	rec, ok := st.ModifiedCode[file]
	if !ok || len(rec.Changes) == 0 {
		return nil
	}

	texts := make([]string, len(rec.Changes))
	for i, c := range rec.Changes {
		texts[i] = displayText(c)
	}
	var highlighted []diff.Line
	if hl != nil {
		highlighted = hl.Lines(file, texts)
	}

	rows := make([]changeRow, len(rec.Changes))
	for i, c := range rec.Changes {
		rows[i] = changeRow{
			Change:   c,
			Decision: st.Ledger.Line(file, c.Line),
		}
		if i < len(highlighted) {
			rows[i].Tokens = highlighted[i]
		}
		if f, ok := findings[findingKey{file, c.Line}]; ok {
			rows[i].Finding = &f
		}
	}
	return rows
}

// decisionBadge renders a decision as a one-cell marker.
func decisionBadge(d model.Decision) string {
	switch d {
	case model.DecisionAccepted:
		return acceptedStyle.Render("✓")
	case model.DecisionRejected:
		return rejectedStyle.Render("✗")
	default:
		return pendingStyle.Render("·")
	}
}

func findingStyle(s model.Severity) lipgloss.Style {
	switch {
	case s >= model.SeverityHigh:
		return findingHighStyle
	case s == model.SeverityMedium:
		return findingMediumStyle
	default:
		return findingLowStyle
	}
}

// renderTokens renders highlighted text, or the plain text when there are
// no tokens.
func renderTokens(tokens diff.Line, text string) string {
	if len(tokens) == 0 {
		return text
	}
	var b strings.Builder
	for _, tok := range tokens {
		if tok.Color != "" {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(tok.Text))
		} else {
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

// styleRow renders a change row: decision badge, line number, change marker
// and content.
func styleRow(r changeRow, width int, selected bool) string {
	num := lineNumberStyle.Render(fmt.Sprintf("%4d", r.Change.Line))

	text := displayText(r.Change)
	maxContent := width - 12
	truncated := maxContent > 0 && len(text) > maxContent

	var mark, content string
	switch r.Change.Type {
	case model.ChangeDeletion:
		mark = deletedLineStyle.Render("-")
		content = deletedLineStyle.Render(truncate(text, maxContent))
	case model.ChangeModification:
		mark = modifiedMarkStyle.Render("~")
	default:
		mark = addedMarkStyle.Render("+")
	}
	if content == "" {
		if truncated {
			content = truncate(text, maxContent)
		} else {
			content = renderTokens(r.Tokens, text)
		}
	}

	line := decisionBadge(r.Decision) + " " + num + " " + mark + " " + content
	if r.Finding != nil {
		line += " " + findingStyle(r.Finding.Severity).Render("●")
	}
	if selected {
		return changeCursorStyle.Width(width).Render(line)
	}
	return line
}

// detailLines describes the change under the cursor: what it replaces and
// any finding on its line.
func detailLines(r changeRow, width int) []string {
	var out []string
	if r.Change.Type == model.ChangeModification && r.Change.OldContent != "" {
		out = append(out, oldContentStyle.Render(truncate("was: "+r.Change.OldContent, width)))
	}
	if f := r.Finding; f != nil {
		msg := fmt.Sprintf("%s: %s", f.Severity, f.Message)
		out = append(out, findingStyle(f.Severity).Render(truncate(msg, width)))
		if f.Suggestion != "" {
			out = append(out, helpBarStyle.Render(truncate("  "+f.Suggestion, width)))
		}
	}
	return out
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) > max {
		return s[:max-1] + "…"
	}
	return s
}
